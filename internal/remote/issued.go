package remote

import (
	"context"
	"net/http/httptrace"
)

type issuedKey struct{}

// WithIssued attaches fn to ctx. A Send made with the returned context calls
// fn once the request has been written to the connection. fn may be called
// more than once and must tolerate that.
func WithIssued(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, issuedKey{}, fn)
}

// MarkIssued calls the hook attached by WithIssued, if any. Mirror
// implementations that do not use *Client call it once their request is out.
func MarkIssued(ctx context.Context) {
	if fn, ok := ctx.Value(issuedKey{}).(func()); ok && fn != nil {
		fn()
	}
}

// traceIssued wires the WithIssued hook of ctx to the HTTP transport.
func traceIssued(ctx context.Context) context.Context {
	if _, ok := ctx.Value(issuedKey{}).(func()); !ok {
		return ctx
	}
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { MarkIssued(ctx) },
	})
}
