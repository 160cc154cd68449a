package cloudsql

import (
	"context"
	"crypto/tls"

	"github.com/pganalyze/cloudconnect/internal/adminapi"
)

// ConnectionInfo is the atomic unit served to callers of
// Instance.ConnectionInfo: metadata, ephemeral certificate, and TLS
// context, all produced by the same refresh cycle. It is never assembled
// from pieces of different refresh cycles.
type ConnectionInfo struct {
	Metadata  adminapi.Instance
	Cert      adminapi.EphemeralCert
	TLSConfig *tls.Config
}

// refreshResult is a promise of a ConnectionInfo: callers block on ready
// until a value or error has been set, at which point it never changes.
// This plays the role of the "current" promise in spec terms.
type refreshResult struct {
	ready chan struct{}
	data  ConnectionInfo
	err   error
}

func newRefreshResult() *refreshResult {
	return &refreshResult{ready: make(chan struct{})}
}

// resolve sets the final value and unblocks every waiter. Must be called
// at most once.
func (r *refreshResult) resolve(data ConnectionInfo, err error) {
	r.data = data
	r.err = err
	close(r.ready)
}

// wait blocks until resolve has been called, or ctx is cancelled first.
func (r *refreshResult) wait(ctx context.Context) (ConnectionInfo, error) {
	select {
	case <-r.ready:
		return r.data, r.err
	case <-ctx.Done():
		return ConnectionInfo{}, ctx.Err()
	}
}
