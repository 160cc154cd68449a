package cloudconnect

import (
	"context"
	"fmt"
	"net"
	"sync"
)

var (
	defaultDialerOnce sync.Once
	defaultDialer     *Dialer
	defaultDialerErr  error
)

// Dial dials instance using a lazily-initialized, process-wide default
// Dialer built with no options (Application Default Credentials, the
// public-then-private IP preference). It exists for simple callers that
// don't need driver-shim-level control; any non-trivial use should
// construct its own Dialer with NewDialer so its lifetime and options
// are explicit. Mirrors the real connector's own package-level Dial
// convenience wrapper, including its singleton-leak tradeoff: the
// default Dialer is never closed.
func Dial(ctx context.Context, connName string) (net.Conn, error) {
	defaultDialerOnce.Do(func() {
		defaultDialer, defaultDialerErr = NewDialer(ctx)
	})
	if defaultDialerErr != nil {
		return nil, fmt.Errorf("initializing default dialer: %w", defaultDialerErr)
	}
	return defaultDialer.Dial(ctx, connName)
}
