// Package oaas is the function-side SDK of the OaaS platform.
//
// The platform invokes a function with a task descriptor. ParseContext turns that
// descriptor into an InvocationContext, which gives the handler its arguments, lets it
// read the files of the main and input objects and upload files of the main and output
// objects through presigned URLs. When the handler is done, CreateCompletion and
// CreateReplyHeader build the response the platform expects.
//
// A Router dispatches tasks to handlers by function key; package functionRuntime serves a Router
// over HTTP and gRPC.
package oaas
