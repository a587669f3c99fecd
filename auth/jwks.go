package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// maxKeySetSize bounds the key set document read from the endpoint.
	maxKeySetSize = 1 << 20

	// maxMissingKids bounds the negative cache of key ids.
	maxMissingKids = 1024
)

// KeySet resolves key ids to public keys from a JWKS endpoint.
//
// Keys are cached for the life of the process. A lookup for a kid that the
// last fetch did not contain refetches the set, so rotated keys are picked up
// without a restart. Concurrent refetches are collapsed into one. A kid that
// is still missing after a fetch is remembered, and lookups for it refetch at
// most once per MinRefreshInterval.
type KeySet struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	keys    map[string]crypto.PublicKey
	missing map[string]struct{}

	group   singleflight.Group
	limiter *rate.Limiter
}

// NewKeySet creates a KeySet reading cfg.JWKSURL. A nil client uses
// http.DefaultClient and a nil logger uses slog.Default().
func NewKeySet(cfg Config, client *http.Client, logger *slog.Logger) *KeySet {
	cfg.validate()
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.MinRefreshInterval > 0 {
		limit = rate.Every(cfg.MinRefreshInterval)
	}

	return &KeySet{
		url:     cfg.JWKSURL,
		client:  client,
		timeout: cfg.FetchTimeout,
		logger:  logger,
		keys:    make(map[string]crypto.PublicKey),
		missing: make(map[string]struct{}),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Key returns the public key for kid, refetching the set on a miss.
func (ks *KeySet) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	key, known, ok := ks.lookup(kid)
	if ok {
		return key, nil
	}

	if err := ks.refresh(ctx, kid, known); err != nil {
		return nil, err
	}

	if key, _, ok := ks.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

// Len returns the number of cached keys.
func (ks *KeySet) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

// lookup reports the cached key for kid, and whether kid is already known
// to be absent from the published set.
func (ks *KeySet) lookup(kid string) (crypto.PublicKey, bool, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if key, ok := ks.keys[kid]; ok {
		return key, false, true
	}
	_, missing := ks.missing[kid]
	return nil, missing, false
}

// refresh fetches the key set. Every fetch takes a limiter token when one is
// available, but only a kid already seen missing is refused without one.
func (ks *KeySet) refresh(ctx context.Context, kid string, knownMissing bool) error {
	if allowed := ks.limiter.Allow(); knownMissing && !allowed {
		ks.logger.DebugContext(ctx, "key set refresh rate limited", "url", ks.url, "kid", kid)
		return nil
	}
	if _, _, ok := ks.lookup(kid); ok {
		return nil
	}

	_, err, shared := ks.group.Do("refresh", func() (any, error) {
		return nil, ks.fetch(ctx)
	})
	if shared {
		ks.logger.DebugContext(ctx, "joined in-flight key set refresh", "url", ks.url)
	}
	if err != nil {
		return err
	}

	ks.mu.Lock()
	if _, ok := ks.keys[kid]; !ok && kid != "" {
		if len(ks.missing) >= maxMissingKids {
			ks.missing = make(map[string]struct{})
		}
		ks.missing[kid] = struct{}{}
	}
	ks.mu.Unlock()
	return nil
}

func (ks *KeySet) fetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ks.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.client.Do(req)
	if err != nil {
		ks.logger.ErrorContext(ctx, "key set fetch failed", "url", ks.url, "error", err)
		return fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ks.logger.ErrorContext(ctx, "key set fetch failed", "url", ks.url, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrKeySetUnavailable, resp.StatusCode)
	}

	var doc jwkset.JWKSMarshal
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetSize)).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrKeySetUnavailable, err)
	}

	keys := make(map[string]crypto.PublicKey, len(doc.Keys))
	for _, m := range doc.Keys {
		if m.KID == "" || (m.USE != "" && m.USE != jwkset.UseSig) {
			continue
		}
		key, err := verificationKey(m)
		if err != nil {
			ks.logger.WarnContext(ctx, "skipping key", "kid", m.KID, "kty", m.KTY, "error", err)
			continue
		}
		keys[m.KID] = key
	}

	ks.mu.Lock()
	ks.keys = keys
	ks.missing = make(map[string]struct{})
	ks.mu.Unlock()

	ks.logger.InfoContext(ctx, "key set refreshed", "url", ks.url, "keys", len(keys))
	return nil
}

var errUnsupportedKey = errors.New("unsupported key")

// verificationKey parses and validates m, keeping only asymmetric public keys.
func verificationKey(m jwkset.JWKMarshal) (crypto.PublicKey, error) {
	jwk, err := jwkset.NewJWKFromMarshal(m, jwkset.JWKMarshalOptions{}, jwkset.JWKValidateOptions{})
	if err != nil {
		return nil, err
	}

	switch key := jwk.Key().(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return key, nil
	}
	return nil, fmt.Errorf("%w: kty %q", errUnsupportedKey, m.KTY)
}
