package oaas

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionTask = `{
  "id": "task-1",
  "funcKey": "example.fn",
  "main": {"id": "m", "data": {"count": 1}},
  "output": {"id": "o", "data": {"seed": true}}
}`

func TestCreateCompletion_Defaults(t *testing.T) {
	ic, err := ParseContextFromString(completionTask)
	require.NoError(t, err)
	ic.record(&ic.outputKeys, "image")
	ic.record(&ic.mainKeys, "state")

	c := ic.CreateCompletion()

	assert.Equal(t, "task-1", c.ID)
	assert.True(t, c.Success)
	assert.Nil(t, c.ErrorMsg)
	assert.Equal(t, map[string]any{"count": float64(1)}, c.Main.Data)
	assert.Equal(t, []string{"state"}, c.Main.UpdatedKeys)
	assert.Equal(t, map[string]any{"seed": true}, c.Output.Data)
	assert.Equal(t, []string{"image"}, c.Output.UpdatedKeys)
}

func TestCreateCompletion_ExplicitData(t *testing.T) {
	ic, err := ParseContextFromString(completionTask)
	require.NoError(t, err)

	c := ic.CreateCompletion(
		MainData(map[string]any{"count": 2}),
		OutputData(map[string]any{"result": "x"}),
		Extensions(map[string]string{"runtime": "go"}),
	)

	assert.Equal(t, map[string]any{"count": 2}, c.Main.Data)
	assert.Equal(t, map[string]any{"result": "x"}, c.Output.Data)
	assert.Equal(t, "go", c.Extensions["runtime"])

	// defaults are copies, mutating them does not touch the task
	d := ic.CreateCompletion()
	d.Main.Data["count"] = 99
	assert.Equal(t, float64(1), ic.Task().Main.Data["count"])
}

func TestCreateCompletion_Failure(t *testing.T) {
	ic, err := ParseContextFromString(completionTask)
	require.NoError(t, err)

	c := ic.CreateCompletion(Failed(errors.New("boom")))
	assert.False(t, c.Success)
	require.NotNil(t, c.ErrorMsg)
	assert.Equal(t, "boom", *c.ErrorMsg)

	c = ic.CreateCompletion(Failed(nil))
	assert.True(t, c.Success)

	c = ic.CreateCompletion(Success(false))
	assert.False(t, c.Success)
	assert.Nil(t, c.ErrorMsg)
}

func TestCreateCompletion_ImmutableWithoutOutput(t *testing.T) {
	ic, err := ParseContextFromString(`{"id":"t","funcKey":"f","immutable":true,"main":{"id":"m","data":{"a":1}}}`)
	require.NoError(t, err)

	c := ic.CreateCompletion(MainData(map[string]any{"ignored": true}))

	assert.Nil(t, c.Main.Data)
	assert.Nil(t, c.Main.UpdatedKeys)
	assert.Nil(t, c.Output.Data)
}

func TestCreateCompletion_ClearedData(t *testing.T) {
	ic, err := ParseContextFromString(completionTask)
	require.NoError(t, err)

	c := ic.CreateCompletion(MainData(map[string]any{}), OutputData(map[string]any{}))
	b, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded struct {
		Main   map[string]any `json:"main"`
		Output map[string]any `json:"output"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, map[string]any{"data": map[string]any{}, "updatedKeys": []any{}}, decoded.Main)
	assert.Equal(t, map[string]any{"data": map[string]any{}, "updatedKeys": []any{}}, decoded.Output)
}

func TestCreateCompletion_AbsentSectionsMarshalEmpty(t *testing.T) {
	ic, err := ParseContextFromString(`{"id":"t","funcKey":"f","immutable":true,"main":{"id":"m","data":{"a":1}}}`)
	require.NoError(t, err)

	b, err := json.Marshal(ic.CreateCompletion())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t","success":true,"errorMsg":null,"main":{},"output":{},"extensions":null}`, string(b))
}

func TestCreateReplyHeader(t *testing.T) {
	ic, err := ParseContextFromString(completionTask)
	require.NoError(t, err)

	h := ic.CreateReplyHeader(http.Header{"X-Custom": []string{"1"}})

	assert.Equal(t, "task-1", h.Get("Ce-Id"))
	assert.Equal(t, "1.0", h.Get("Ce-specversion"))
	assert.Equal(t, "oaas/example.fn", h.Get("Ce-Source"))
	assert.Equal(t, "oaas.task.result", h.Get("Ce-Type"))
	assert.Equal(t, "1", h.Get("X-Custom"))
}

func TestCreateReplyHeader_NoOutput(t *testing.T) {
	ic, err := ParseContextFromString(`{"id":"t","funcKey":"f","main":{"id":"m"}}`)
	require.NoError(t, err)

	h := ic.CreateReplyHeader(nil)

	assert.Equal(t, "t", h.Get(HeaderID))
	assert.Empty(t, h.Get(HeaderSource))
	assert.Equal(t, TaskResultType, h.Get(HeaderType))
}
