// Package callctx carries the invoking identity on a context and resolves the
// privileged operator.
package callctx

import (
	"context"
	"errors"
)

// ErrNoCaller is returned when the context carries no caller identity.
var ErrNoCaller = errors.New("callctx: caller identity missing")

type callerKey struct{}

// WithCaller returns a context carrying caller as the invoking identity.
func WithCaller(ctx context.Context, caller [20]byte) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the invoking identity stored on ctx.
func CallerFrom(ctx context.Context) ([20]byte, bool) {
	if ctx == nil {
		return [20]byte{}, false
	}
	caller, ok := ctx.Value(callerKey{}).([20]byte)
	return caller, ok
}

// Static resolves callers from the context against a fixed operator.
type Static struct {
	operator [20]byte
}

// NewStatic returns an identity service whose operator is fixed.
func NewStatic(operator [20]byte) *Static {
	return &Static{operator: operator}
}

// Caller returns the invoking identity.
func (s *Static) Caller(ctx context.Context) ([20]byte, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return caller, ErrNoCaller
	}
	return caller, nil
}

// Operator returns the privileged operator identity.
func (s *Static) Operator() [20]byte { return s.operator }
