package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Names of the rows in the api_keys table
const (
	KeyAnthropic  = "anthropic_api_key"
	KeyElevenLabs = "elevenlabs_api_key"
)

// ErrKeyNotFound is returned when a key is neither configured nor stored.
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore resolves third-party API keys. Statically configured keys win;
// otherwise the key is read from the project's api_keys table through the
// Supabase REST API and cached for ttl.
type KeyStore struct {
	static     map[string]string
	restURL    string
	serviceKey string
	ttl        time.Duration
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedKey
	now   func() time.Time
}

type cachedKey struct {
	value   string
	fetched time.Time
}

// KeyStoreConfig configures a KeyStore.
type KeyStoreConfig struct {
	Static      map[string]string
	SupabaseURL string // empty disables the table lookup
	ServiceKey  string
	TTL         time.Duration
	Logger      zerolog.Logger
}

// NewKeyStore creates a key store.
func NewKeyStore(cfg KeyStoreConfig) *KeyStore {
	static := make(map[string]string, len(cfg.Static))
	for k, v := range cfg.Static {
		if v != "" {
			static[k] = v
		}
	}
	ks := &KeyStore{
		static:     static,
		serviceKey: cfg.ServiceKey,
		ttl:        cfg.TTL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     cfg.Logger,
		cache:      make(map[string]cachedKey),
		now:        time.Now,
	}
	if cfg.SupabaseURL != "" && cfg.ServiceKey != "" {
		ks.restURL = strings.TrimRight(cfg.SupabaseURL, "/") + "/rest/v1"
	}
	return ks
}

// Get returns the key called name.
func (ks *KeyStore) Get(ctx context.Context, name string) (string, error) {
	if v, ok := ks.static[name]; ok {
		return v, nil
	}
	if ks.restURL == "" {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}

	ks.mu.Lock()
	if c, ok := ks.cache[name]; ok && ks.now().Sub(c.fetched) < ks.ttl {
		ks.mu.Unlock()
		return c.value, nil
	}
	ks.mu.Unlock()

	value, err := ks.fetch(ctx, name)
	if err != nil {
		return "", err
	}

	ks.mu.Lock()
	ks.cache[name] = cachedKey{value: value, fetched: ks.now()}
	ks.mu.Unlock()
	return value, nil
}

// IsConfigured reports whether a non-empty key called name can be resolved.
func (ks *KeyStore) IsConfigured(ctx context.Context, name string) bool {
	v, err := ks.Get(ctx, name)
	if err != nil {
		ks.logger.Debug().Err(err).Str("key", name).Msg("API key not available")
		return false
	}
	return v != ""
}

// Invalidate drops a cached key so the next Get refetches it.
func (ks *KeyStore) Invalidate(name string) {
	ks.mu.Lock()
	delete(ks.cache, name)
	ks.mu.Unlock()
}

func (ks *KeyStore) fetch(ctx context.Context, name string) (string, error) {
	u := fmt.Sprintf("%s/api_keys?select=value&name=eq.%s", ks.restURL, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("keys: create request: %w", err)
	}
	req.Header.Set("apikey", ks.serviceKey)
	req.Header.Set("Authorization", "Bearer "+ks.serviceKey)
	// single-object response; 406 when zero or several rows match
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := ks.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("keys: fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("keys: fetch %s failed (status %d): %s", name, resp.StatusCode, string(body))
	}

	var row struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&row); err != nil {
		return "", fmt.Errorf("keys: decode %s: %w", name, err)
	}
	if row.Value == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrKeyNotFound, name)
	}
	return row.Value, nil
}
