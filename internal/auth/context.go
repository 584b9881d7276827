// ABOUTME: Request context plumbing for the authenticated device identity
// ABOUTME: Provides WithDevice/FromContext for propagating identity via context

package auth

import (
	"context"
)

// DeviceContext holds the authenticated device identity extracted from a
// request. The bearer middleware populates it; handlers read it back.
type DeviceContext struct {
	DeviceID string // registry ID of the authenticated device
	Token    string // the bearer token as presented
}

// deviceContextKey is the key type for storing DeviceContext in context.Context.
type deviceContextKey struct{}

// WithDevice returns a new context with the DeviceContext attached.
func WithDevice(ctx context.Context, dc *DeviceContext) context.Context {
	return context.WithValue(ctx, deviceContextKey{}, dc)
}

// FromContext retrieves the DeviceContext, returning nil if not present.
func FromContext(ctx context.Context) *DeviceContext {
	val := ctx.Value(deviceContextKey{})
	if val == nil {
		return nil
	}
	dc, ok := val.(*DeviceContext)
	if !ok {
		return nil
	}
	return dc
}

// MustFromContext retrieves the DeviceContext, panicking if not present.
// Only for handlers that are always behind the bearer middleware.
func MustFromContext(ctx context.Context) *DeviceContext {
	dc := FromContext(ctx)
	if dc == nil {
		panic("auth: DeviceContext not found in context")
	}
	return dc
}
