package tenant

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *BoltDBStore {
	t.Helper()
	store, err := NewBoltDBStore(filepath.Join(t.TempDir(), "tenants.db"))
	if err != nil {
		t.Fatalf("NewBoltDBStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltDBStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want not found", ok, err)
	}

	want := Tenant{ClientID: 42, InstanceID: 7}
	if err := store.Put(ctx, "secret-key", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "secret-key")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	count, err := store.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1", count, err)
	}

	if err := store.Delete(ctx, "secret-key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "secret-key"); ok {
		t.Error("key still present after Delete()")
	}

	if err := store.Put(ctx, "", want); err == nil {
		t.Error("Put() with empty key should fail")
	}
}

func TestLoadTenantMap_Seed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	content := `
keys:
  billing-api:
    api_key: "abc123"
    client_id: 1
    instance_id: 10
  worker:
    api_key: "def456"
    client_id: 2
    instance_id: 20
    notes: nightly jobs
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tm, err := LoadTenantMap(path)
	if err != nil {
		t.Fatalf("LoadTenantMap() error = %v", err)
	}
	if len(tm.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(tm.Keys))
	}

	ctx := context.Background()
	store := newTestStore(t)
	if err := tm.Seed(ctx, store); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "def456")
	if err != nil || !ok {
		t.Fatalf("Get() after seed = ok=%v err=%v", ok, err)
	}
	if got != (Tenant{ClientID: 2, InstanceID: 20}) {
		t.Errorf("seeded tenant = %+v", got)
	}
}

func TestLoadTenantMap_MissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	if err := os.WriteFile(path, []byte("keys:\n  broken:\n    client_id: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTenantMap(path); err == nil {
		t.Error("expected error for entry without api_key")
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Put(ctx, "known", Tenant{ClientID: 5, InstanceID: 6}); err != nil {
		t.Fatal(err)
	}
	fallback := &Tenant{ClientID: 100, InstanceID: 200}

	tests := []struct {
		name     string
		resolver *Resolver
		creds    Credentials
		expected Tenant
		err      error
	}{
		{
			name:     "api key",
			resolver: NewResolver(store, fallback),
			creds:    Credentials{APIKey: "known"},
			expected: Tenant{ClientID: 5, InstanceID: 6},
		},
		{
			name:     "api key wins over headers",
			resolver: NewResolver(store, fallback),
			creds:    Credentials{APIKey: "known", ClientID: "1", InstanceID: "1"},
			expected: Tenant{ClientID: 5, InstanceID: 6},
		},
		{
			name:     "unknown api key",
			resolver: NewResolver(store, fallback),
			creds:    Credentials{APIKey: "nope"},
			err:      ErrUnknownAPIKey,
		},
		{
			name:     "api key without registry",
			resolver: NewResolver(nil, nil),
			creds:    Credentials{APIKey: "known"},
			err:      ErrUnknownAPIKey,
		},
		{
			name:     "explicit headers",
			resolver: NewResolver(store, fallback),
			creds:    Credentials{ClientID: "11", InstanceID: "12"},
			expected: Tenant{ClientID: 11, InstanceID: 12},
		},
		{
			name:     "half headers",
			resolver: NewResolver(store, fallback),
			creds:    Credentials{ClientID: "11"},
			err:      ErrInvalidHeaders,
		},
		{
			name:     "non-numeric headers",
			resolver: NewResolver(store, fallback),
			creds:    Credentials{ClientID: "a", InstanceID: "b"},
			err:      ErrInvalidHeaders,
		},
		{
			name:     "fallback",
			resolver: NewResolver(store, fallback),
			expected: *fallback,
		},
		{
			name:     "unresolved",
			resolver: NewResolver(store, nil),
			err:      ErrUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resolver.Resolve(ctx, tt.creds)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestCredentialsFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/events/raw?apiKey=from-query", nil)
	r.Header.Set(HeaderClientID, " 3 ")
	r.Header.Set(HeaderInstanceID, "4")

	c := CredentialsFromRequest(r)
	if c.APIKey != "from-query" || c.ClientID != "3" || c.InstanceID != "4" {
		t.Errorf("CredentialsFromRequest() = %+v", c)
	}

	r.Header.Set(HeaderAPIKey, "from-header")
	if c := CredentialsFromRequest(r); c.APIKey != "from-header" {
		t.Errorf("header api key should win, got %q", c.APIKey)
	}
}
