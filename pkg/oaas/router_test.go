package oaas

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaastest"
)

func TestRouter_HandleTask(t *testing.T) {
	p := oaastest.NewPlatform(t)
	r := NewRouter(nil, nil)
	r.HandleFunc("example.upper", func(ctx context.Context, ic *InvocationContext) (*Completion, error) {
		rc, err := ic.LoadMainFile(ctx, "text")
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		if err := ic.UploadBytes(ctx, "text", []byte(string(b)+"!")); err != nil {
			return nil, err
		}
		return ic.CreateCompletion(OutputData(map[string]any{"length": len(b)})), nil
	})

	raw := p.NewTask("example.upper").MainFile("text", []byte("hello")).Output("text").JSON()
	ic, c, err := r.HandleTask(context.Background(), raw)

	require.NoError(t, err)
	assert.True(t, c.Success)
	assert.Equal(t, []string{"text"}, c.Output.UpdatedKeys)
	assert.Equal(t, 5, c.Output.Data["length"])

	got, ok := p.Object(ic.Task().Output.ID, "text")
	require.True(t, ok)
	assert.Equal(t, "hello!", string(got))
}

func TestRouter_UnknownFunction(t *testing.T) {
	r := NewRouter(nil, nil)

	ic, c, err := r.HandleTask(context.Background(), []byte(`{"id":"t","funcKey":"nope","main":{"id":"m"}}`))

	assert.ErrorIs(t, err, ErrNoHandler)
	assert.NotNil(t, ic)
	assert.Nil(t, c)
}

func TestRouter_HandlerError(t *testing.T) {
	r := NewRouter(nil, nil)
	r.HandleFunc("f", func(ctx context.Context, ic *InvocationContext) (*Completion, error) {
		return nil, errors.New("handler exploded")
	})

	_, c, err := r.HandleTask(context.Background(), []byte(`{"id":"t","funcKey":"f","main":{"id":"m"}}`))

	require.NoError(t, err)
	assert.False(t, c.Success)
	require.NotNil(t, c.ErrorMsg)
	assert.Equal(t, "handler exploded", *c.ErrorMsg)
}

func TestRouter_HandlerPanic(t *testing.T) {
	r := NewRouter(nil, nil)
	r.HandleFunc("f", func(ctx context.Context, ic *InvocationContext) (*Completion, error) {
		panic("user bug")
	})

	_, c, err := r.HandleTask(context.Background(), []byte(`{"id":"t","funcKey":"f","main":{"id":"m"}}`))

	require.NoError(t, err)
	assert.False(t, c.Success)
	require.NotNil(t, c.ErrorMsg)
	assert.Contains(t, *c.ErrorMsg, "user bug")
	assert.Contains(t, *c.ErrorMsg, ErrHandlerPanic.Error())
}

func TestRouter_NilCompletion(t *testing.T) {
	r := NewRouter(nil, nil)
	r.HandleFunc("f", func(ctx context.Context, ic *InvocationContext) (*Completion, error) {
		return nil, nil
	})

	_, c, err := r.HandleTask(context.Background(), []byte(`{"id":"t","funcKey":"f","main":{"id":"m"}}`))

	require.NoError(t, err)
	assert.True(t, c.Success)
	assert.Equal(t, "t", c.ID)
}

func TestRouter_BadTask(t *testing.T) {
	r := NewRouter(nil, nil)

	_, _, err := r.HandleTask(context.Background(), []byte(`[]`))

	assert.Error(t, err)
}

func TestRouter_RegistryIsPerInstance(t *testing.T) {
	a := NewRouter(nil, nil)
	b := NewRouter(nil, nil)
	a.HandleFunc("only-a", func(ctx context.Context, ic *InvocationContext) (*Completion, error) { return nil, nil })
	a.HandleFunc("also-a", func(ctx context.Context, ic *InvocationContext) (*Completion, error) { return nil, nil })

	_, ok := b.Lookup("only-a")
	assert.False(t, ok)
	assert.Equal(t, []string{"also-a", "only-a"}, a.Keys())
	assert.Empty(t, b.Keys())
}
