package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/functionRuntime"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/presign"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/storage"
)

const sampleTask = `{"id":"t-1","funcKey":"example.fn","main":{"id":"m-1","data":{"n":1}},"args":{"k":"v"}}`

func TestInspectTask_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, InspectTask(&out, []byte(sampleTask), true))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "t-1", decoded["id"])
	// normalization fills in empty maps
	assert.Equal(t, map[string]any{}, decoded["mainKeys"])
}

func TestInspectTask_Dump(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, InspectTask(&out, []byte(sampleTask), false))
	assert.Contains(t, out.String(), "example.fn")
}

func TestInspectTask_Invalid(t *testing.T) {
	assert.Error(t, InspectTask(&bytes.Buffer{}, []byte(`{"id":"x"}`), true))
}

func TestApp_Inspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTask), 0o600))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run(context.Background(), []string{"oaas-cli", "inspect", "--json", path}))
	assert.Contains(t, out.String(), `"funcKey": "example.fn"`)
}

type fakeInvoker struct {
	got []byte
}

func (f *fakeInvoker) Invoke(ctx context.Context, task []byte) (*functionRuntime.Result, error) {
	f.got = task
	return &functionRuntime.Result{
		Completion: &oaas.Completion{ID: "t-1", Success: true},
		Header:     http.Header{"Ce-Id": []string{"t-1"}},
	}, nil
}

func TestInvokeTask(t *testing.T) {
	inv := &fakeInvoker{}
	var out bytes.Buffer

	require.NoError(t, InvokeTask(context.Background(), &out, inv, []byte(sampleTask), time.Second))

	assert.Equal(t, sampleTask, string(inv.got))
	assert.Contains(t, out.String(), "Ce-Id: t-1")
	assert.Contains(t, out.String(), `"success": true`)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("object-bytes"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, Download(context.Background(), storage.NewClient(), srv.URL+"/k", "", &out, time.Second))
	assert.Equal(t, "object-bytes", out.String())

	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, Download(context.Background(), storage.NewClient(), srv.URL+"/k", path, nil, time.Second))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "object-bytes", string(b))

	assert.Error(t, Download(context.Background(), storage.NewClient(), "", "", &out, time.Second))
}

func TestPresign(t *testing.T) {
	p, err := presign.NewS3Presigner(presign.S3Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "bkt",
		AccessKey: "a",
		SecretKey: "b",
		PathStyle: true,
	})
	require.NoError(t, err)

	u, err := Presign(p, "put", "obj/key", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "/bkt/obj/key")

	_, err = Presign(p, "DELETE", "obj/key", time.Minute)
	assert.Error(t, err)
}
