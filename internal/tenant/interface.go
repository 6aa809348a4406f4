package tenant

import (
	"context"
	"errors"
)

var (
	// ErrUnresolved means the request carried no tenant information and no default is configured
	ErrUnresolved = errors.New("tenant could not be resolved: provide X-Seq-ApiKey or X-Client-Id and X-Instance-Id headers")
	// ErrUnknownAPIKey means the API key is not registered
	ErrUnknownAPIKey = errors.New("unknown API key")
	// ErrInvalidHeaders means the tenant id headers are missing or not integers
	ErrInvalidHeaders = errors.New("X-Client-Id and X-Instance-Id must both be integers")
)

// Tenant identifies the client/instance pair that owns stored events
type Tenant struct {
	ClientID   int64
	InstanceID int64
}

// Store maps ingestion API keys to tenants
// Implementations: BoltDB
type Store interface {
	// Get returns the tenant registered for an API key; ok is false if the key is unknown
	Get(ctx context.Context, apiKey string) (Tenant, bool, error)

	// Put registers or replaces an API key
	Put(ctx context.Context, apiKey string, t Tenant) error

	// Delete removes an API key
	Delete(ctx context.Context, apiKey string) error

	// Count returns the number of registered keys
	Count(ctx context.Context) (int, error)

	// Close closes the store
	Close() error
}
