// Package cloudsql implements the per-instance credential refresh
// engine: the cache of current and scheduled connection data, the
// refresh scheduler, the forced-refresh rate limiter, and the
// synchronous read path drivers use to get a usable TLS context.
package cloudsql

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pganalyze/cloudconnect/errtype"
	"github.com/pganalyze/cloudconnect/instance"
	"github.com/pganalyze/cloudconnect/internal/adminapi"
	"github.com/pganalyze/cloudconnect/internal/cloudsqllog"
	"github.com/pganalyze/cloudconnect/internal/keys"
)

const (
	// refreshInterval is the delay before a follow-up refresh after a
	// success: slightly shorter than the ~60 minute certificate
	// validity, to leave margin for a slow refresh.
	refreshInterval = 55 * time.Minute

	// supportedBackendType is the only backend generation this
	// connector supports.
	supportedBackendType = "SECOND_GEN"

	// forceRefreshBurst permits one forced refresh per window; see
	// forceRefreshWindow.
	forceRefreshBurst  = 1
	forceRefreshWindow = 60 * time.Second
)

// scheduledRefresh is the "next" slot: a promise of a promise. It
// carries the timer that will fire the refresh and the refreshResult
// that refresh will resolve, so callers can tell "scheduled" from
// "resolved" without a deeply nested future type.
type scheduledRefresh struct {
	result *refreshResult
	timer  *time.Timer
}

// Instance is the per-instance credential refresh engine described in
// the core's design: it owns the current/next slot, runs the refresh
// schedule, and serves synchronous reads to dialers.
type Instance struct {
	name    instance.ConnName
	api     adminapi.Client
	keyPair keys.KeyPair
	logger  *cloudsqllog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	current *refreshResult
	next    *scheduledRefresh
	closed  bool
}

// NewInstance constructs the refresh engine for name and immediately
// schedules its first refresh at zero delay. The initial current is
// wired directly onto that first refresh's result, so the first caller
// of ConnectionInfo transparently waits for it instead of blocking
// forever on an empty slot.
func NewInstance(name instance.ConnName, api adminapi.Client, keyPair keys.KeyPair, logger *cloudsqllog.Logger) *Instance {
	inst := &Instance{
		name:    name,
		api:     api,
		keyPair: keyPair,
		logger:  logger.WithPrefix(name.String()),
		limiter: rate.NewLimiter(rate.Every(forceRefreshWindow), forceRefreshBurst),
	}

	inst.mu.Lock()
	inst.scheduleRefreshLocked(0)
	inst.current = inst.next.result
	inst.mu.Unlock()

	return inst
}

// ConnectionInfo blocks until the current refresh cycle has resolved,
// then returns its data. If the underlying refresh failed, the error
// propagates to the caller, which decides whether to retry. ctx only
// governs how long this particular call is willing to wait; it does not
// cancel the refresh itself.
func (i *Instance) ConnectionInfo(ctx context.Context) (ConnectionInfo, error) {
	i.mu.Lock()
	res := i.current
	i.mu.Unlock()
	return res.wait(ctx)
}

// ForceRefresh requests an out-of-band refresh, subject to a rate limit
// of one request per 60 seconds. It returns false if the request is
// denied by the limiter, without any other side effect. It never blocks
// on network I/O itself; it only rearranges the current/next slot.
func (i *Instance) ForceRefresh() bool {
	if !i.limiter.Allow() {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return false
	}

	switch {
	case i.next == nil:
		// Nothing in flight: schedule one immediately.
		i.scheduleRefreshLocked(0)
	case i.next.timer.Stop():
		// Cancelled before it started: replace with an immediate one.
		i.scheduleRefreshLocked(0)
	default:
		// Already running and uncancellable: let it finish: current
		// below is rebound to its result instead of starting a second,
		// parallel refresh.
	}

	// Redirect current to the (possibly just-replaced) next refresh, so
	// pending and future readers wait for it instead of returning stale
	// data.
	i.current = i.next.result
	return true
}

// Close stops the instance's background scheduling. In-flight refreshes
// are allowed to finish, but no further refresh is scheduled afterward.
func (i *Instance) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.next != nil {
		i.next.timer.Stop()
	}
	i.closed = true
}

// scheduleRefreshLocked arms a refresh to run after delay and stores it
// as next, replacing (and stopping) whatever was there before it. Must
// be called with i.mu held. This keeps the "at most one next" invariant
// and ensures a follow-up timer is never left armed after a newer one
// has replaced it — the fix for the overlapping-timer design note in
// spec.md §9.
func (i *Instance) scheduleRefreshLocked(delay time.Duration) {
	if i.closed {
		return
	}
	if i.next != nil {
		i.next.timer.Stop()
	}
	res := newRefreshResult()
	timer := time.AfterFunc(delay, func() { i.runRefresh(res) })
	i.next = &scheduledRefresh{result: res, timer: timer}
}

// runRefresh executes one refresh cycle for res, then republishes
// current/next and arms the follow-up refresh, all under the instance
// mutex so the two updates are observed atomically by readers.
func (i *Instance) runRefresh(res *refreshResult) {
	id := uuid.New().String()
	i.logger.PrintVerbose("refresh %s starting", id)

	data, err := i.performRefresh(context.Background())
	res.resolve(data, err)

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}

	// A timer that fires always corresponds to the current next: the
	// only way to create a new next is scheduleRefreshLocked, which
	// always stops the previous timer first, and a successfully-stopped
	// timer's function never runs (see time.Timer.Stop).
	if i.next != nil && i.next.result == res {
		i.next = nil
	}
	i.current = res

	if err != nil {
		i.logger.PrintError("refresh %s failed, retrying immediately: %s", id, err)
		i.scheduleRefreshLocked(0)
	} else {
		i.logger.PrintVerbose("refresh %s succeeded, next refresh in %s", id, refreshInterval)
		i.scheduleRefreshLocked(refreshInterval)
	}
}

// performRefresh fans out the metadata and ephemeral certificate fetches
// concurrently, validates the result, and assembles a ConnectionInfo.
// Any sub-step failure fails the whole cycle with instance-name context.
func (i *Instance) performRefresh(ctx context.Context) (ConnectionInfo, error) {
	var metadata adminapi.Instance
	var cert adminapi.EphemeralCert

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := i.api.InstanceMetadata(gctx, i.name.Project(), i.name.Name())
		if err != nil {
			return fmt.Errorf("fetching instance metadata: %w", err)
		}
		metadata = m
		return nil
	})
	g.Go(func() error {
		pub, err := i.keyPair.PublicPEM()
		if err != nil {
			return fmt.Errorf("encoding public key: %w", err)
		}
		c, err := i.api.CreateEphemeralCert(gctx, i.name.Project(), i.name.Name(), pub)
		if err != nil {
			return fmt.Errorf("creating ephemeral certificate: %w", err)
		}
		cert = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return ConnectionInfo{}, errtype.NewRefreshError(i.name.String(), err)
	}

	if metadata.Region != i.name.Region() {
		return ConnectionInfo{}, errtype.NewConfigError(i.name.String(), fmt.Sprintf(
			"the region specified (%q) does not match the instance's actual region (%q); "+
				"check the instance connection name", i.name.Region(), metadata.Region))
	}
	if metadata.BackendType != supportedBackendType {
		return ConnectionInfo{}, errtype.NewConfigError(i.name.String(), fmt.Sprintf(
			"unsupported backend type %q: only %q instances are supported",
			metadata.BackendType, supportedBackendType))
	}
	if len(metadata.IPAddresses) == 0 {
		return ConnectionInfo{}, errtype.NewRefreshError(i.name.String(),
			fmt.Errorf("instance has no assigned IP addresses"))
	}

	tlsConfig, err := buildTLSConfig(i.name, metadata, cert, i.keyPair)
	if err != nil {
		return ConnectionInfo{}, errtype.NewRefreshError(i.name.String(), err)
	}

	return ConnectionInfo{Metadata: metadata, Cert: cert, TLSConfig: tlsConfig}, nil
}
