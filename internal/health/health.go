// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package health tracks per-provider failure state and decides whether a
// provider is worth trying right now. Providers are never black-listed
// permanently: after repeated failures a provider is excluded for an
// exponentially growing cooldown window, and any single success restores
// it immediately.
//
// State is process-local. A restart resets every provider to healthy.
//
// See docs/ARCHITECTURE § Provider Health.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/meshintel/scout/pkg/types"
)

const (
	// failureThreshold is the consecutive-failure count at which a
	// provider starts being excluded.
	failureThreshold = 3

	// maxCooldownExponent caps the backoff doubling: the cooldown stops
	// growing after failureThreshold+maxCooldownExponent failures, at
	// 16*baseCooldown.
	maxCooldownExponent = 4

	// baseCooldown is the cooldown after the threshold failure; it
	// doubles with each further failure, capping at 16*baseCooldown (960s).
	baseCooldown = 60 * time.Second
)

// Tracker records provider outcomes and answers eligibility queries.
// Safe for concurrent use by multiple router invocations; contention is
// low since there are only a handful of providers.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*types.ProviderHealth
	now     func() time.Time
}

// NewTracker returns a Tracker with every provider implicitly healthy.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*types.ProviderHealth),
		now:     time.Now,
	}
}

// NewTrackerWithClock returns a Tracker using the supplied clock. Tests
// use this to step through cooldown windows without sleeping.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	t := NewTracker()
	t.now = now
	return t
}

// record returns the health record for provider, creating it on first use.
// Caller must hold t.mu.
func (t *Tracker) record(provider string) *types.ProviderHealth {
	r, ok := t.records[provider]
	if !ok {
		r = &types.ProviderHealth{Provider: provider}
		t.records[provider] = r
	}
	return r
}

// IsEligible reports whether provider may be tried now. A provider is
// eligible until it accumulates failureThreshold consecutive failures;
// past that, eligibility returns only after the cooldown window measured
// from the last failure has elapsed.
func (t *Tracker) IsEligible(provider string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.record(provider)
	if r.ConsecutiveFailures < failureThreshold {
		return true
	}
	if r.LastFailureAt == nil {
		return true
	}
	return now.Sub(*r.LastFailureAt) >= Cooldown(r.ConsecutiveFailures)
}

// Cooldown returns the exclusion window for a given consecutive-failure
// count: 60s at the threshold, doubling per further failure, capped at 960s.
func Cooldown(consecutiveFailures int) time.Duration {
	exp := consecutiveFailures - failureThreshold
	if exp < 0 {
		return 0
	}
	if exp > maxCooldownExponent {
		exp = maxCooldownExponent
	}
	return baseCooldown << uint(exp)
}

// RecordSuccess resets the provider's failure streak and updates totals.
// A single success restores eligibility regardless of backoff state.
func (t *Tracker) RecordSuccess(provider string, responseTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r := t.record(provider)
	r.ConsecutiveFailures = 0
	r.LastSuccessAt = &now
	r.TotalRequests++
	r.TotalSuccesses++
	_ = responseTime // reserved for latency-aware ordering
}

// RecordFailure increments the provider's failure streak.
func (t *Tracker) RecordFailure(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r := t.record(provider)
	r.ConsecutiveFailures++
	r.LastFailureAt = &now
	r.TotalRequests++
}

// Snapshot returns a copy of every provider's health record, ordered by
// provider name for stable reporting.
func (t *Tracker) Snapshot() []types.ProviderHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.ProviderHealth, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
