package auth

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeyResolver returns the public key for a key id.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// Identity is the verified caller of a request.
type Identity struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	Claims    jwt.MapClaims
}

// Verifier validates bearer tokens signed by a key from a KeyResolver.
type Verifier struct {
	keys   KeyResolver
	parser *jwt.Parser
	logger *slog.Logger
}

// validMethods are the accepted signing algorithms. Symmetric algorithms are
// never accepted because the keys are public.
var validMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384"}

// NewVerifier creates a Verifier. A nil logger uses slog.Default().
func NewVerifier(keys KeyResolver, cfg Config, logger *slog.Logger) *Verifier {
	cfg.validate()
	if logger == nil {
		logger = slog.Default()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		keys:   keys,
		parser: jwt.NewParser(opts...),
		logger: logger,
	}
}

// Verify checks the signature and time claims of raw and returns its subject.
// Every error matches ErrAuth.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token has no kid", ErrKeyNotFound)
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		classified := classify(err)
		v.logger.DebugContext(ctx, "token rejected", "reason", classified, "error", err)
		return nil, fmt.Errorf("%w: %v", classified, err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidClaims)
	}

	id := &Identity{Subject: sub, Claims: claims}
	id.Issuer, _ = claims.GetIssuer()
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

// classify maps a jwt parse error onto the package sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeySetUnavailable):
		return ErrKeySetUnavailable
	case errors.Is(err, ErrKeyNotFound):
		return ErrKeyNotFound
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrInvalidClaims
	}
	return ErrInvalidSignature
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
