// Package oaastest provides an in-memory OaaS platform for testing functions.
//
// A Platform serves allocation endpoints and presigned-style object URLs from an
// httptest server, and a TaskBuilder emits task descriptors that point at it.
package oaastest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/utils"
)

const signatureParam = "X-Oaas-Signature"

// Platform is a fake object store plus allocation service.
type Platform struct {
	Server *httptest.Server

	logger *slog.Logger

	mu         sync.Mutex
	blobs      map[string][]byte
	accepted   map[string][]string
	signatures map[string]struct{}
	failures   map[string]int
	requests   map[string]int
}

// NewPlatform starts a platform that is shut down when the test ends.
func NewPlatform(tb testing.TB) *Platform {
	p := newPlatform()
	tb.Cleanup(p.Close)
	return p
}

func newPlatform() *Platform {
	p := &Platform{
		logger:     utils.DiscardLogger(),
		blobs:      make(map[string][]byte),
		accepted:   make(map[string][]string),
		signatures: make(map[string]struct{}),
		failures:   make(map[string]int),
		requests:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /alloc/{object}", p.handleAllocate)
	mux.HandleFunc("POST /alloc/{object}", p.handleAllocateKeys)
	mux.HandleFunc("PUT /objects/{object}/{key...}", p.handlePut)
	mux.HandleFunc("GET /objects/{object}/{key...}", p.handleGet)

	p.Server = httptest.NewServer(p.intercept(mux))
	return p
}

// Close shuts the server down.
func (p *Platform) Close() {
	p.Server.Close()
}

// SetLogger makes the platform log every request it serves.
func (p *Platform) SetLogger(l *slog.Logger) {
	p.mu.Lock()
	p.logger = utils.OrDiscard(l).With("component", "oaastest")
	p.mu.Unlock()
}

// Accept declares the keys an object accepts when its allocation URL is fetched with GET.
func (p *Platform) Accept(objectID string, keys ...string) {
	p.mu.Lock()
	p.accepted[objectID] = append(p.accepted[objectID], keys...)
	p.mu.Unlock()
}

// FailPath makes every request whose path starts with prefix answer with status.
// A status of 0 removes the failure.
func (p *Platform) FailPath(prefix string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == 0 {
		delete(p.failures, prefix)
		return
	}
	p.failures[prefix] = status
}

// Requests returns how many requests with method hit a path starting with prefix.
func (p *Platform) Requests(method, prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k, v := range p.requests {
		m, path, _ := strings.Cut(k, " ")
		if m == method && strings.HasPrefix(path, prefix) {
			n += v
		}
	}
	return n
}

// Object returns the stored bytes of an object file.
func (p *Platform) Object(objectID, key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.blobs[blobKey(objectID, key)]
	return b, ok
}

// PutObject stores bytes as an object file without going through HTTP.
func (p *Platform) PutObject(objectID, key string, data []byte) {
	p.mu.Lock()
	p.blobs[blobKey(objectID, key)] = data
	p.mu.Unlock()
}

// AllocURL is the allocation endpoint of an object.
func (p *Platform) AllocURL(objectID string) string {
	return p.Server.URL + "/alloc/" + objectID
}

// ObjectURL issues a signed URL for an object file.
func (p *Platform) ObjectURL(objectID, key string) string {
	sig := uuid.NewString()
	p.mu.Lock()
	p.signatures[sig] = struct{}{}
	p.mu.Unlock()
	return p.Server.URL + "/objects/" + objectID + "/" + key + "?" + signatureParam + "=" + sig
}

func (p *Platform) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests[r.Method+" "+r.URL.Path]++
		logger := p.logger
		status := 0
		for prefix, s := range p.failures {
			if strings.HasPrefix(r.URL.Path, prefix) {
				status = s
				break
			}
		}
		p.mu.Unlock()

		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Platform) handleAllocate(w http.ResponseWriter, r *http.Request) {
	object := r.PathValue("object")
	p.mu.Lock()
	keys := append([]string(nil), p.accepted[object]...)
	p.mu.Unlock()

	p.writeURLs(w, object, keys)
}

func (p *Platform) handleAllocateKeys(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	p.writeURLs(w, r.PathValue("object"), keys)
}

func (p *Platform) writeURLs(w http.ResponseWriter, object string, keys []string) {
	urls := make(map[string]string, len(keys))
	for _, k := range keys {
		urls[k] = p.ObjectURL(object, k)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(urls)
}

func (p *Platform) handlePut(w http.ResponseWriter, r *http.Request) {
	if !p.signed(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	p.PutObject(r.PathValue("object"), r.PathValue("key"), b)
	w.WriteHeader(http.StatusOK)
}

func (p *Platform) handleGet(w http.ResponseWriter, r *http.Request) {
	if !p.signed(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	b, ok := p.Object(r.PathValue("object"), r.PathValue("key"))
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(b)
}

func (p *Platform) signed(r *http.Request) bool {
	sig := r.URL.Query().Get(signatureParam)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.signatures[sig]
	return ok
}

func blobKey(objectID, key string) string {
	return objectID + "/" + key
}
