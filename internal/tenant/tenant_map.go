package tenant

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// KeyInfo describes one ingestion API key in the tenant map file
type KeyInfo struct {
	APIKey     string `yaml:"api_key"`
	ClientID   int64  `yaml:"client_id"`
	InstanceID int64  `yaml:"instance_id"`
	Notes      string `yaml:"notes"`
}

// TenantMap is the content of tenants.yaml
type TenantMap struct {
	Keys map[string]KeyInfo `yaml:"keys"` // Keyed by a human-readable source name
}

// LoadTenantMap loads tenants.yaml
func LoadTenantMap(path string) (*TenantMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant map: %w", err)
	}

	var tm TenantMap
	if err := yaml.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("failed to parse tenant map: %w", err)
	}

	if tm.Keys == nil {
		tm.Keys = make(map[string]KeyInfo)
	}

	for name, info := range tm.Keys {
		if info.APIKey == "" {
			return nil, fmt.Errorf("tenant map entry %q has no api_key", name)
		}
	}

	return &tm, nil
}

// Seed registers every key of the map in the store, replacing existing registrations
func (tm *TenantMap) Seed(ctx context.Context, store Store) error {
	for name, info := range tm.Keys {
		t := Tenant{ClientID: info.ClientID, InstanceID: info.InstanceID}
		if err := store.Put(ctx, info.APIKey, t); err != nil {
			return fmt.Errorf("failed to seed %q: %w", name, err)
		}
		log.Debug().
			Str("source", name).
			Int64("client_id", info.ClientID).
			Int64("instance_id", info.InstanceID).
			Msg("Seeded API key from tenant map")
	}

	log.Info().Int("keys", len(tm.Keys)).Msg("Tenant map loaded")
	return nil
}
