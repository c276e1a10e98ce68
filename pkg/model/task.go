package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingMain     = errors.New("model: task has no main object")
	ErrInputOutOfRange = errors.New("model: input index out of range")
	ErrNoSuchKey       = errors.New("model: no such key")
)

// ObjectOrigin records which function produced an object and with which arguments.
type ObjectOrigin struct {
	FuncName string `json:"funcName"`
	Args     Args   `json:"args"`
}

// Object is an OaaS object as seen by a single invocation.
type Object struct {
	ID     string         `json:"id"`
	Origin ObjectOrigin   `json:"origin"`
	Data   map[string]any `json:"data"`
}

// Task is the invocation task descriptor the platform sends to a function.
type Task struct {
	ID        string  `json:"id"`
	FuncKey   string  `json:"funcKey"`
	Immutable bool    `json:"immutable"`
	Main      *Object `json:"main"`
	// Output is nil when the function does not produce an output object.
	Output *Object  `json:"output,omitempty"`
	Inputs []Object `json:"inputs,omitempty"`

	AllocOutputURL string `json:"allocOutputUrl,omitempty"`
	AllocMainURL   string `json:"allocMainUrl,omitempty"`

	// MainKeys maps a file key of the main object to a presigned GET URL.
	MainKeys map[string]string `json:"mainKeys"`
	// InputKeys holds one key to presigned GET URL map per input object.
	InputKeys []map[string]string `json:"inputKeys,omitempty"`

	Args Args `json:"args"`
}

// ParseTask decodes a task descriptor and fills in empty defaults.
func ParseTask(b []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("model: decode task: %w", err)
	}
	if err := t.normalize(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Task) normalize() error {
	if t.Main == nil {
		return ErrMissingMain
	}
	t.Main.normalize()
	if t.Output != nil {
		t.Output.normalize()
	}
	for i := range t.Inputs {
		t.Inputs[i].normalize()
	}
	if t.MainKeys == nil {
		t.MainKeys = map[string]string{}
	}
	for i, keys := range t.InputKeys {
		if keys == nil {
			t.InputKeys[i] = map[string]string{}
		}
	}
	if t.Args == nil {
		t.Args = Args{}
	}
	return nil
}

func (o *Object) normalize() {
	if o.Data == nil {
		o.Data = map[string]any{}
	}
	if o.Origin.Args == nil {
		o.Origin.Args = Args{}
	}
}

// HasOutput reports whether the task carries an output object.
func (t *Task) HasOutput() bool {
	return t.Output != nil
}

// Input returns the i-th input object.
func (t *Task) Input(i int) (*Object, error) {
	if i < 0 || i >= len(t.Inputs) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrInputOutOfRange, i, len(t.Inputs))
	}
	return &t.Inputs[i], nil
}

// MainKeyURL returns the presigned GET URL of a main object file.
func (t *Task) MainKeyURL(key string) (string, bool) {
	u, ok := t.MainKeys[key]
	return u, ok
}

// InputKeyURL returns the presigned GET URL of a file of the i-th input object.
func (t *Task) InputKeyURL(i int, key string) (string, error) {
	if i < 0 || i >= len(t.InputKeys) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrInputOutOfRange, i, len(t.InputKeys))
	}
	u, ok := t.InputKeys[i][key]
	if !ok {
		return "", fmt.Errorf("%w %q in input object %d", ErrNoSuchKey, key, i)
	}
	return u, nil
}
