package oaastest

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/model"
)

// TaskBuilder assembles a task descriptor whose URLs point at a Platform.
type TaskBuilder struct {
	p    *Platform
	task model.Task
}

// NewTask starts a mutable task for funcKey with an empty main object.
func (p *Platform) NewTask(funcKey string) *TaskBuilder {
	mainID := uuid.NewString()
	return &TaskBuilder{
		p: p,
		task: model.Task{
			ID:      uuid.NewString(),
			FuncKey: funcKey,
			Main: &model.Object{
				ID:     mainID,
				Origin: model.ObjectOrigin{FuncName: "builtin.logical.new", Args: model.Args{}},
				Data:   map[string]any{},
			},
			AllocMainURL: p.AllocURL(mainID),
			MainKeys:     map[string]string{},
			Args:         model.Args{},
		},
	}
}

// ID sets the task id.
func (b *TaskBuilder) ID(id string) *TaskBuilder {
	b.task.ID = id
	return b
}

// Immutable marks the task as not allowed to change its main object.
func (b *TaskBuilder) Immutable() *TaskBuilder {
	b.task.Immutable = true
	return b
}

// Arg adds an invocation argument.
func (b *TaskBuilder) Arg(key, value string) *TaskBuilder {
	b.task.Args[key] = value
	return b
}

// MainData sets the data of the main object.
func (b *TaskBuilder) MainData(data map[string]any) *TaskBuilder {
	b.task.Main.Data = data
	return b
}

// MainFile stores a file of the main object and exposes its URL in mainKeys.
func (b *TaskBuilder) MainFile(key string, data []byte) *TaskBuilder {
	b.p.PutObject(b.task.Main.ID, key, data)
	b.task.MainKeys[key] = b.p.ObjectURL(b.task.Main.ID, key)
	return b
}

// AcceptMain declares keys the main object accepts on allocation.
func (b *TaskBuilder) AcceptMain(keys ...string) *TaskBuilder {
	b.p.Accept(b.task.Main.ID, keys...)
	return b
}

// Output adds an output object that accepts keys on allocation.
func (b *TaskBuilder) Output(keys ...string) *TaskBuilder {
	id := uuid.NewString()
	b.task.Output = &model.Object{
		ID:     id,
		Origin: model.ObjectOrigin{FuncName: b.task.FuncKey, Args: b.task.Args},
		Data:   map[string]any{},
	}
	b.task.AllocOutputURL = b.p.AllocURL(id)
	b.p.Accept(id, keys...)
	return b
}

// Input adds an input object holding files.
func (b *TaskBuilder) Input(files map[string][]byte) *TaskBuilder {
	id := uuid.NewString()
	urls := make(map[string]string, len(files))
	for k, v := range files {
		b.p.PutObject(id, k, v)
		urls[k] = b.p.ObjectURL(id, k)
	}
	b.task.Inputs = append(b.task.Inputs, model.Object{
		ID:     id,
		Origin: model.ObjectOrigin{Args: model.Args{}},
		Data:   map[string]any{},
	})
	b.task.InputKeys = append(b.task.InputKeys, urls)
	return b
}

// Task returns the assembled task.
func (b *TaskBuilder) Task() *model.Task {
	t := b.task
	return &t
}

// JSON returns the task descriptor as the platform would send it.
func (b *TaskBuilder) JSON() []byte {
	out, err := json.Marshal(b.task)
	if err != nil {
		panic(err)
	}
	return out
}
