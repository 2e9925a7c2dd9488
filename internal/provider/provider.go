// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider queries external web-search backends and returns raw,
// provider-tagged results. Each backend (Brave, Tavily, DuckDuckGo)
// implements the Client interface per the Strategy pattern; new backends
// are added by implementing the interface, not by branching on name.
//
// See docs/ARCHITECTURE § Providers.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/meshintel/scout/pkg/types"
)

// Client searches a single external backend.
type Client interface {
	Name() string
	Search(ctx context.Context, queryText string, maxResults int, cfg types.SearchConfig) ([]types.RawResult, error)
}

// ErrorKind classifies a provider failure for the caller's logging and
// health accounting. All kinds count as failures against the provider's
// health record; Permanent failures are additionally logged distinctly
// since backoff alone will not resolve them.
type ErrorKind int

const (
	// Transient covers timeouts, 5xx responses, and network errors.
	Transient ErrorKind = iota

	// RateLimited covers HTTP 429 after retries were exhausted.
	RateLimited

	// Permanent covers authentication and configuration failures.
	Permanent
)

// String returns a short label for logs.
func (k ErrorKind) String() string {
	switch k {
	case RateLimited:
		return "rate-limited"
	case Permanent:
		return "permanent"
	default:
		return "transient"
	}
}

// Error is a typed provider failure.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// newError wraps cause in a typed provider failure.
func newError(provider string, kind ErrorKind, cause error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: cause}
}

// IsPermanent reports whether err is a provider failure that retrying
// cannot fix (bad API key, missing configuration).
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == Permanent
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == RateLimited
}

// FromChain builds the provider fallback chain for the configured specs.
// Unknown provider names are reported rather than silently skipped so a
// typo in the priority list fails at startup, before any I/O.
func FromChain(specs []types.ProviderSpec, cfg types.SearchConfig) ([]Client, error) {
	clients := make([]Client, 0, len(specs))
	for _, spec := range specs {
		switch spec.Name {
		case "duckduckgo":
			clients = append(clients, &DuckDuckGoClient{})
		case "brave":
			clients = append(clients, &BraveClient{APIKey: cfg.BraveAPIKey})
		case "tavily":
			clients = append(clients, &TavilyClient{APIKey: cfg.TavilyAPIKey})
		default:
			return nil, fmt.Errorf("unknown search provider %q", spec.Name)
		}
	}
	return clients, nil
}
