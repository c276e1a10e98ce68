package functionRuntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/storage"
)

// Result is what a function answered to a task.
type Result struct {
	Completion *oaas.Completion
	Header     http.Header
}

// Invoker sends a task descriptor to a running function.
type Invoker interface {
	Invoke(ctx context.Context, task []byte) (*Result, error)
}

// HTTPInvoker posts tasks to the CloudEvents endpoint of a function.
type HTTPInvoker struct {
	url    string
	client storage.HTTPClient
}

// NewHTTPInvoker creates an invoker for url. A nil client uses http.DefaultClient.
func NewHTTPInvoker(url string, client storage.HTTPClient) *HTTPInvoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPInvoker{url: url, client: client}
}

func (i *HTTPInvoker) Invoke(ctx context.Context, task []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(task))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoke failed with status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var c oaas.Completion
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	return &Result{Completion: &c, Header: cloudEventHeaders(resp.Header)}, nil
}

// GRPCInvoker calls the gRPC endpoint of a function.
type GRPCInvoker struct {
	conn grpc.ClientConnInterface
}

func NewGRPCInvoker(conn grpc.ClientConnInterface) *GRPCInvoker {
	return &GRPCInvoker{conn: conn}
}

func (i *GRPCInvoker) Invoke(ctx context.Context, task []byte) (*Result, error) {
	var header metadata.MD
	out := new(wrapperspb.BytesValue)
	if err := i.conn.Invoke(ctx, InvokeMethod, wrapperspb.Bytes(task), out, grpc.Header(&header)); err != nil {
		return nil, err
	}

	var c oaas.Completion
	if err := json.Unmarshal(out.GetValue(), &c); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	h := make(http.Header)
	for k, v := range header {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return &Result{Completion: &c, Header: cloudEventHeaders(h)}, nil
}

func cloudEventHeaders(h http.Header) http.Header {
	out := make(http.Header)
	for k, v := range h {
		if strings.HasPrefix(k, "Ce-") {
			out[k] = v
		}
	}
	return out
}
