// Package errtype classifies and formats the errors cloudconnect returns,
// so callers can tell a permanent configuration mistake from a transient
// control-plane hiccup from a dial-time failure.
package errtype

import "fmt"

// ConfigError reports a permanent configuration problem: a malformed
// instance name, a region mismatch, an unsupported backend generation,
// or a requested IP type with no matching address.
type ConfigError struct {
	Instance string
	Detail   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Instance, e.Detail)
}

// NewConfigError builds a ConfigError.
func NewConfigError(instance, detail string) *ConfigError {
	return &ConfigError{Instance: instance, Detail: detail}
}

// RefreshError wraps a failure encountered while refreshing an
// instance's metadata, ephemeral certificate, or TLS context. These are
// the failures the scheduler retries on its next tick.
type RefreshError struct {
	Instance string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("[%s] refresh failed: %s", e.Instance, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// NewRefreshError builds a RefreshError.
func NewRefreshError(instance string, err error) *RefreshError {
	return &RefreshError{Instance: instance, Err: err}
}

// DialError reports a failure establishing or authenticating the
// network connection itself: TCP connect or TLS handshake. The core
// never retries these automatically. Dialer.Dial also returns a
// DialError with Action "refresh" when waiting for an instance's
// connection info fails; the RefreshError or ConfigError behind it is
// reachable through Unwrap.
type DialError struct {
	Instance string
	Action   string
	Err      error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Instance, e.Action, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// NewDialError builds a DialError.
func NewDialError(action, instance string, err error) *DialError {
	return &DialError{Instance: instance, Action: action, Err: err}
}
