// Package connectivity decides, per call, whether remote reads and writes are
// allowed or the local caches are authoritative.
package connectivity

import (
	"context"

	"github.com/dailysync/keeper/pkg/ctxutil"
)

// Policy is the remote-sync gate. It must stay cheap and side-effect free:
// consumers evaluate it before every remote read instead of caching it.
type Policy struct {
	enabled bool
}

// NewPolicy creates a policy. enabled=false forces local-only mode regardless
// of authentication (the explicit feature flag).
func NewPolicy(enabled bool) *Policy {
	return &Policy{enabled: enabled}
}

// CanRemoteSync reports whether remote operations may run for this call:
// the feature flag is on and the context carries an authenticated user.
func (p *Policy) CanRemoteSync(ctx context.Context) bool {
	if !p.enabled {
		return false
	}
	_, ok := ctxutil.UserIDFromCtx(ctx)
	return ok
}
