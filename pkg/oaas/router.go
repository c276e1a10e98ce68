package oaas

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/storage"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/utils"
)

// Handler runs the user code of a function.
type Handler interface {
	Handle(ctx context.Context, ic *InvocationContext) (*Completion, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, ic *InvocationContext) (*Completion, error)

func (f HandlerFunc) Handle(ctx context.Context, ic *InvocationContext) (*Completion, error) {
	return f(ctx, ic)
}

// Router dispatches tasks to handlers by function key.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	storage  *storage.Client
	logger   *slog.Logger
}

// NewRouter creates an empty router. Invocation contexts it creates share storage.
// A nil storage client is replaced by a default one.
func NewRouter(logger *slog.Logger, storageClient *storage.Client) *Router {
	logger = utils.OrDiscard(logger)
	if storageClient == nil {
		storageClient = storage.NewClient(storage.WithLogger(logger))
	}
	return &Router{
		handlers: make(map[string]Handler),
		storage:  storageClient,
		logger:   logger.With("component", "router"),
	}
}

// Register binds a handler to a function key, replacing any previous one.
func (r *Router) Register(funcKey string, h Handler) {
	r.mu.Lock()
	r.handlers[funcKey] = h
	r.mu.Unlock()
}

// HandleFunc registers fn for funcKey.
func (r *Router) HandleFunc(funcKey string, fn func(ctx context.Context, ic *InvocationContext) (*Completion, error)) {
	r.Register(funcKey, HandlerFunc(fn))
}

func (r *Router) Lookup(funcKey string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[funcKey]
	return h, ok
}

// Keys lists the registered function keys in sorted order.
func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// HandleTask parses a task and runs the handler registered for its function key.
//
// A parse failure or a missing handler is returned as an error. A handler error is folded
// into a failed completion unless the handler returned its own completion.
func (r *Router) HandleTask(ctx context.Context, raw []byte) (*InvocationContext, *Completion, error) {
	ic, err := ParseContext(raw, WithStorage(r.storage), WithLogger(r.logger))
	if err != nil {
		return nil, nil, err
	}

	h, ok := r.Lookup(ic.FuncKey())
	if !ok {
		return ic, nil, fmt.Errorf("%w %q", ErrNoHandler, ic.FuncKey())
	}

	completion, err := r.call(ctx, h, ic)
	if err != nil {
		ic.Logger().Error("Function failed", "error", err)
		if completion == nil {
			completion = ic.CreateCompletion(Failed(err))
		}
		return ic, completion, nil
	}
	if completion == nil {
		completion = ic.CreateCompletion()
	}
	return ic, completion, nil
}

// call runs h and turns a panic into an error wrapping ErrHandlerPanic.
func (r *Router) call(ctx context.Context, h Handler, ic *InvocationContext) (completion *Completion, err error) {
	defer func() {
		if p := recover(); p != nil {
			ic.Logger().Error("Function panicked", "panic", p, "stack", string(debug.Stack()))
			completion, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return h.Handle(ctx, ic)
}
