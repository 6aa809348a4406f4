package tenant

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Header names understood by the resolver. X-Seq-ApiKey is what Serilog's Seq sink sends.
const (
	HeaderAPIKey     = "X-Seq-ApiKey"
	HeaderClientID   = "X-Client-Id"
	HeaderInstanceID = "X-Instance-Id"
	QueryAPIKey      = "apiKey"
)

// Credentials is the tenant information carried by an ingestion request
type Credentials struct {
	APIKey     string
	ClientID   string
	InstanceID string
}

// CredentialsFromRequest extracts tenant information from headers (or the apiKey query parameter)
func CredentialsFromRequest(r *http.Request) Credentials {
	apiKey := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if apiKey == "" {
		apiKey = strings.TrimSpace(r.URL.Query().Get(QueryAPIKey))
	}
	return Credentials{
		APIKey:     apiKey,
		ClientID:   strings.TrimSpace(r.Header.Get(HeaderClientID)),
		InstanceID: strings.TrimSpace(r.Header.Get(HeaderInstanceID)),
	}
}

// Resolver attributes ingestion requests to tenants.
// Order: API key registry, explicit id headers, configured default.
type Resolver struct {
	store    Store
	fallback *Tenant
}

// NewResolver creates a resolver; store and fallback may be nil
func NewResolver(store Store, fallback *Tenant) *Resolver {
	return &Resolver{
		store:    store,
		fallback: fallback,
	}
}

// Resolve returns the tenant for the given credentials
func (r *Resolver) Resolve(ctx context.Context, c Credentials) (Tenant, error) {
	if c.APIKey != "" {
		if r.store == nil {
			return Tenant{}, ErrUnknownAPIKey
		}
		t, ok, err := r.store.Get(ctx, c.APIKey)
		if err != nil {
			return Tenant{}, fmt.Errorf("failed to look up api key: %w", err)
		}
		if !ok {
			return Tenant{}, ErrUnknownAPIKey
		}
		return t, nil
	}

	if c.ClientID != "" || c.InstanceID != "" {
		clientID, err := strconv.ParseInt(c.ClientID, 10, 64)
		if err != nil {
			return Tenant{}, ErrInvalidHeaders
		}
		instanceID, err := strconv.ParseInt(c.InstanceID, 10, 64)
		if err != nil {
			return Tenant{}, ErrInvalidHeaders
		}
		return Tenant{ClientID: clientID, InstanceID: instanceID}, nil
	}

	if r.fallback != nil {
		return *r.fallback, nil
	}

	return Tenant{}, ErrUnresolved
}
