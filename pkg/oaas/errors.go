package oaas

import (
	"errors"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/model"
)

var (
	ErrKeyNotAccepted  = errors.New("oaas: object does not accept key")
	ErrNoOutput        = errors.New("oaas: task has no output object")
	ErrImmutable       = errors.New("oaas: task is immutable")
	ErrNoHandler       = errors.New("oaas: no handler registered for function")
	ErrHandlerPanic    = errors.New("oaas: handler panicked")
	ErrNoSuchKey       = model.ErrNoSuchKey
	ErrInputOutOfRange = model.ErrInputOutOfRange
)
