// Package tokensource implements a cached, externally issued credential
// that refreshes ahead of expiry, with a write exclusion discipline so
// a burst of requests near expiry coalesces into one refresh. Two
// authorities are provided: JWT, a signed-JWT service-account exchange,
// and InstanceMetadata, backed by aws-sdk-go-v2/credentials for
// deployments that get ambient instance credentials instead of a
// service-account key file.
package tokensource

import (
	"context"
	"sync"
	"time"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/metrics"
)

// refreshAhead is how long before expiry the source proactively
// refreshes: consumers never receive a credential within its last 5
// minutes of validity.
const refreshAhead = 5 * time.Minute

// Authority fetches a brand-new credential from the backing issuer.
type Authority interface {
	Fetch(ctx context.Context) (domain.Credential, error)
}

// Source caches the most recently fetched Credential and refreshes it
// ahead of expiry, matching the apikey expiry-check idiom generalized to
// a proactive policy.
type Source struct {
	authority Authority
	now       func() time.Time

	mu    sync.Mutex
	cred  domain.Credential
	valid bool
}

// New creates a Source backed by authority.
func New(authority Authority) *Source {
	return &Source{authority: authority, now: time.Now}
}

// Token returns the cached credential if it is still fresh, otherwise
// fetches a new one under the Source's lock. Concurrent callers that
// arrive while a refresh is in flight block on the same lock rather
// than each issuing their own fetch — a thundering herd of concurrent
// refreshes is only a concern across process boundaries, not within
// one.
func (s *Source) Token(ctx context.Context) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid && !s.nearExpiry() {
		return s.cred, nil
	}

	cred, err := s.authority.Fetch(ctx)
	metrics.Global().RecordCredentialRefresh(err == nil)
	if err != nil {
		return domain.Credential{}, err
	}

	s.cred = cred
	s.valid = true
	return cred, nil
}

func (s *Source) nearExpiry() bool {
	cutoff := s.now().Add(refreshAhead).Unix()
	return cutoff >= s.cred.ExpiresAt
}
