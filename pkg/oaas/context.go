package oaas

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/model"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/storage"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/utils"
)

// InvocationContext is the state of a single invocation: the task, the upload URLs
// allocated so far and the keys written to the main and output objects.
type InvocationContext struct {
	task    *model.Task
	storage *storage.Client
	logger  *slog.Logger

	mu         sync.Mutex
	outputURLs map[string]string
	mainURLs   map[string]string
	outputKeys keySet
	mainKeys   keySet
	// set once the full key set of an object has been allocated
	outputFull bool
	mainFull   bool
}

// Option configures an InvocationContext.
type Option func(*InvocationContext)

// WithStorage sets the storage client used for allocation and transfers.
func WithStorage(c *storage.Client) Option {
	return func(ic *InvocationContext) {
		ic.storage = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ic *InvocationContext) {
		ic.logger = l
	}
}

// ParseContext decodes a task descriptor and wraps it in an InvocationContext.
func ParseContext(b []byte, opts ...Option) (*InvocationContext, error) {
	task, err := model.ParseTask(b)
	if err != nil {
		return nil, err
	}
	return NewContext(task, opts...), nil
}

// ParseContextFromString is ParseContext for a string payload.
func ParseContextFromString(s string, opts ...Option) (*InvocationContext, error) {
	return ParseContext([]byte(s), opts...)
}

// NewContext wraps an already decoded task.
func NewContext(task *model.Task, opts ...Option) *InvocationContext {
	ic := &InvocationContext{task: task}
	for _, opt := range opts {
		opt(ic)
	}
	ic.logger = utils.OrDiscard(ic.logger).With("task", task.ID, "function", task.FuncKey)
	if ic.storage == nil {
		ic.storage = storage.NewClient(storage.WithLogger(ic.logger))
	}
	return ic
}

func (ic *InvocationContext) ID() string { return ic.task.ID }

func (ic *InvocationContext) FuncKey() string { return ic.task.FuncKey }

func (ic *InvocationContext) Args() model.Args { return ic.task.Args }

func (ic *InvocationContext) Task() *model.Task { return ic.task }

// Logger returns a logger tagged with the task id and function key.
func (ic *InvocationContext) Logger() *slog.Logger { return ic.logger }

// MainResourceURL returns the presigned GET URL of a main object file.
func (ic *InvocationContext) MainResourceURL(key string) (string, bool) {
	return ic.task.MainKeyURL(key)
}

// Allocate requests upload URLs for the output object and merges them into the
// URLs allocated so far. It returns a copy of the merged map.
func (ic *InvocationContext) Allocate(ctx context.Context) (map[string]string, error) {
	urls, err := ic.storage.Allocate(ctx, ic.task.AllocOutputURL)
	if err != nil {
		return nil, fmt.Errorf("allocate output urls: %w", err)
	}
	return ic.merge(&ic.outputURLs, &ic.outputFull, urls), nil
}

// AllocateMain requests upload URLs for the main object.
func (ic *InvocationContext) AllocateMain(ctx context.Context) (map[string]string, error) {
	urls, err := ic.storage.Allocate(ctx, ic.task.AllocMainURL)
	if err != nil {
		return nil, fmt.Errorf("allocate main urls: %w", err)
	}
	return ic.merge(&ic.mainURLs, &ic.mainFull, urls), nil
}

// AllocateCollection requests upload URLs for the given output keys.
func (ic *InvocationContext) AllocateCollection(ctx context.Context, keys []string) (map[string]string, error) {
	urls, err := ic.storage.AllocateKeys(ctx, ic.task.AllocOutputURL, keys)
	if err != nil {
		return nil, fmt.Errorf("allocate output collection: %w", err)
	}
	return ic.merge(&ic.outputURLs, nil, urls), nil
}

func (ic *InvocationContext) merge(dst *map[string]string, full *bool, urls map[string]string) map[string]string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if full != nil {
		*full = true
	}
	if *dst == nil {
		*dst = make(map[string]string, len(urls))
	}
	maps.Copy(*dst, urls)
	return maps.Clone(*dst)
}

// outputURL returns the upload URL for an output key. The full key set is allocated
// the first time a key is missing.
func (ic *InvocationContext) outputURL(ctx context.Context, key string) (string, error) {
	if !ic.task.HasOutput() {
		return "", ErrNoOutput
	}
	return ic.lookup(ctx, key, &ic.outputURLs, &ic.outputFull, ic.Allocate, "output")
}

func (ic *InvocationContext) mainURL(ctx context.Context, key string) (string, error) {
	if ic.task.Immutable {
		return "", ErrImmutable
	}
	return ic.lookup(ctx, key, &ic.mainURLs, &ic.mainFull, ic.AllocateMain, "main")
}

func (ic *InvocationContext) lookup(
	ctx context.Context,
	key string,
	urls *map[string]string,
	full *bool,
	allocate func(context.Context) (map[string]string, error),
	object string,
) (string, error) {
	ic.mu.Lock()
	allocated := *full
	u, found := (*urls)[key]
	ic.mu.Unlock()

	if !found && !allocated {
		all, err := allocate(ctx)
		if err != nil {
			return "", err
		}
		u, found = all[key]
	}
	if !found || u == "" {
		return "", fmt.Errorf("%w: the %s object does not accept %q", ErrKeyNotAccepted, object, key)
	}
	return u, nil
}

// UploadBytes uploads data as the given key of the output object.
func (ic *InvocationContext) UploadBytes(ctx context.Context, key string, data []byte) error {
	return ic.UploadReader(ctx, key, bytes.NewReader(data), int64(len(data)))
}

// UploadReader uploads size bytes from r as the given key of the output object.
func (ic *InvocationContext) UploadReader(ctx context.Context, key string, r io.Reader, size int64) error {
	u, err := ic.outputURL(ctx, key)
	if err != nil {
		return err
	}
	if err := ic.storage.Put(ctx, u, r, size, storage.PutOptions{}); err != nil {
		return err
	}
	ic.record(&ic.outputKeys, key)
	return nil
}

// UploadFile uploads the file at path as the given key of the output object.
func (ic *InvocationContext) UploadFile(ctx context.Context, key, path string) error {
	u, err := ic.outputURL(ctx, key)
	if err != nil {
		return err
	}
	if err := ic.storage.PutFile(ctx, u, path, storage.PutOptions{}); err != nil {
		return err
	}
	ic.record(&ic.outputKeys, key)
	return nil
}

// UploadMainBytes uploads data as the given key of the main object.
func (ic *InvocationContext) UploadMainBytes(ctx context.Context, key string, data []byte) error {
	u, err := ic.mainURL(ctx, key)
	if err != nil {
		return err
	}
	if err := ic.storage.Put(ctx, u, bytes.NewReader(data), int64(len(data)), storage.PutOptions{}); err != nil {
		return err
	}
	ic.record(&ic.mainKeys, key)
	return nil
}

// UploadMainFile uploads the file at path as the given key of the main object.
func (ic *InvocationContext) UploadMainFile(ctx context.Context, key, path string) error {
	u, err := ic.mainURL(ctx, key)
	if err != nil {
		return err
	}
	if err := ic.storage.PutFile(ctx, u, path, storage.PutOptions{}); err != nil {
		return err
	}
	ic.record(&ic.mainKeys, key)
	return nil
}

// UploadCollection allocates URLs for all keys in one request and uploads the files
// in parallel. The first failed upload cancels the others.
func (ic *InvocationContext) UploadCollection(ctx context.Context, keyToPath map[string]string) error {
	if !ic.task.HasOutput() {
		return ErrNoOutput
	}
	keys := slices.Sorted(maps.Keys(keyToPath))
	if len(keys) == 0 {
		return nil
	}
	if _, err := ic.AllocateCollection(ctx, keys); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		path := keyToPath[key]
		g.Go(func() error {
			if err := ic.UploadFile(gctx, key, path); err != nil {
				return fmt.Errorf("upload %q: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ic.logger.Error("collection upload failed", "keys", len(keys), "error", err)
		return err
	}
	ic.logger.Debug("collection uploaded", "keys", len(keys))
	return nil
}

// LoadMainFile opens a file of the main object. The caller closes the reader.
func (ic *InvocationContext) LoadMainFile(ctx context.Context, key string) (io.ReadCloser, error) {
	u, ok := ic.task.MainKeyURL(key)
	if !ok {
		return nil, fmt.Errorf("%w %q in main object", ErrNoSuchKey, key)
	}
	return ic.storage.Get(ctx, u)
}

// LoadInputFile opens a file of the input object at index.
func (ic *InvocationContext) LoadInputFile(ctx context.Context, index int, key string) (io.ReadCloser, error) {
	u, err := ic.task.InputKeyURL(index, key)
	if err != nil {
		return nil, err
	}
	return ic.storage.Get(ctx, u)
}

// LoadFile opens any presigned URL using the context's storage client.
func (ic *InvocationContext) LoadFile(ctx context.Context, url string) (io.ReadCloser, error) {
	return ic.storage.Get(ctx, url)
}

// LoadFile opens a presigned URL with a default storage client.
func LoadFile(ctx context.Context, url string) (io.ReadCloser, error) {
	return storage.NewClient().Get(ctx, url)
}

// UpdatedKeys returns the output object keys uploaded so far, in upload order.
func (ic *InvocationContext) UpdatedKeys() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.outputKeys.list()
}

// UpdatedMainKeys returns the main object keys uploaded so far, in upload order.
func (ic *InvocationContext) UpdatedMainKeys() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.mainKeys.list()
}

func (ic *InvocationContext) record(set *keySet, key string) {
	ic.mu.Lock()
	set.add(key)
	ic.mu.Unlock()
}

// keySet keeps insertion order and drops duplicates.
type keySet struct {
	order []string
	seen  map[string]struct{}
}

func (s *keySet) add(key string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
}

func (s *keySet) list() []string {
	return slices.Clone(s.order)
}
