package jsonrpc

// Handler defines the interface for handling JSON-RPC requests
type Handler interface {
	Handle(request Request) Response
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(Request) Response

func (f HandlerFunc) Handle(request Request) Response {
	return f(request)
}
