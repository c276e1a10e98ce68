package oaas

import (
	"encoding/json"
	"maps"
	"net/http"
)

// CloudEvents reply headers understood by the platform.
const (
	HeaderID          = "Ce-Id"
	HeaderSpecVersion = "Ce-Specversion"
	HeaderSource      = "Ce-Source"
	HeaderType        = "Ce-Type"

	SpecVersion    = "1.0"
	TaskResultType = "oaas.task.result"
	sourcePrefix   = "oaas/"
)

// ObjectUpdate describes how an invocation changed an object. A zero ObjectUpdate
// marks a section the task has no say over and marshals as {}. Any other value
// always carries both data and updatedKeys, so an empty data map clears the object.
type ObjectUpdate struct {
	Data        map[string]any `json:"data"`
	UpdatedKeys []string       `json:"updatedKeys"`
}

// Present reports whether the section carries an update.
func (u ObjectUpdate) Present() bool {
	return u.Data != nil || u.UpdatedKeys != nil
}

func (u ObjectUpdate) MarshalJSON() ([]byte, error) {
	if !u.Present() {
		return []byte("{}"), nil
	}
	type plain ObjectUpdate
	out := plain(u)
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	if out.UpdatedKeys == nil {
		out.UpdatedKeys = []string{}
	}
	return json.Marshal(out)
}

// Completion is the result of a task reported back to the platform.
type Completion struct {
	ID         string            `json:"id"`
	Success    bool              `json:"success"`
	ErrorMsg   *string           `json:"errorMsg"`
	Main       ObjectUpdate      `json:"main"`
	Output     ObjectUpdate      `json:"output"`
	Extensions map[string]string `json:"extensions"`
}

type completionConfig struct {
	success    bool
	errorMsg   *string
	mainData   map[string]any
	outputData map[string]any
	extensions map[string]string
}

// CompletionOption customizes CreateCompletion.
type CompletionOption func(*completionConfig)

// Success sets the success flag. Completions succeed by default.
func Success(ok bool) CompletionOption {
	return func(c *completionConfig) {
		c.success = ok
	}
}

// Error marks the completion as failed with msg.
func Error(msg string) CompletionOption {
	return func(c *completionConfig) {
		c.success = false
		c.errorMsg = &msg
	}
}

// Failed marks the completion as failed with the message of err. A nil err is ignored.
func Failed(err error) CompletionOption {
	if err == nil {
		return func(*completionConfig) {}
	}
	return Error(err.Error())
}

// MainData replaces the data of the main object.
func MainData(data map[string]any) CompletionOption {
	return func(c *completionConfig) {
		c.mainData = data
	}
}

// OutputData sets the data of the output object.
func OutputData(data map[string]any) CompletionOption {
	return func(c *completionConfig) {
		c.outputData = data
	}
}

// Extensions attaches free-form extension values.
func Extensions(ext map[string]string) CompletionOption {
	return func(c *completionConfig) {
		c.extensions = ext
	}
}

// CreateCompletion builds the completion of this invocation. The main section is filled
// only for mutable tasks and the output section only when the task has an output object;
// data not given explicitly defaults to the object's current data.
func (ic *InvocationContext) CreateCompletion(opts ...CompletionOption) *Completion {
	cfg := completionConfig{success: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Completion{
		ID:         ic.task.ID,
		Success:    cfg.success,
		ErrorMsg:   cfg.errorMsg,
		Extensions: cfg.extensions,
	}

	if !ic.task.Immutable {
		c.Main = objectUpdate(cfg.mainData, ic.task.Main.Data, ic.UpdatedMainKeys())
	}

	if ic.task.HasOutput() {
		c.Output = objectUpdate(cfg.outputData, ic.task.Output.Data, ic.UpdatedKeys())
	}
	return c
}

func objectUpdate(data, current map[string]any, keys []string) ObjectUpdate {
	if data == nil {
		data = maps.Clone(current)
	}
	if data == nil {
		data = map[string]any{}
	}
	if keys == nil {
		keys = []string{}
	}
	return ObjectUpdate{Data: data, UpdatedKeys: keys}
}

// CreateReplyHeader sets the CloudEvents headers of the task result on h and returns it.
// A nil h allocates a new header.
func (ic *InvocationContext) CreateReplyHeader(h http.Header) http.Header {
	if h == nil {
		h = make(http.Header)
	}
	h.Set(HeaderID, ic.task.ID)
	h.Set(HeaderSpecVersion, SpecVersion)
	if ic.task.HasOutput() {
		h.Set(HeaderSource, sourcePrefix+ic.task.FuncKey)
	}
	h.Set(HeaderType, TaskResultType)
	return h
}
