package auth_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// signer is a private key published under kid.
type signer struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
}

func newRSASigner(t *testing.T, kid string) signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signer{kid: kid, method: jwt.SigningMethodRS256, key: key}
}

func newECSigner(t *testing.T, kid string) signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return signer{kid: kid, method: jwt.SigningMethodES256, key: key}
}

// sign issues a token for sub that expires in ttl.
func (s signer) sign(t *testing.T, sub string, ttl time.Duration, extra jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	if sub != "" {
		claims["sub"] = sub
	}
	for k, v := range extra {
		claims[k] = v
	}
	return s.signClaims(t, claims)
}

func (s signer) signClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.kid
	raw, err := token.SignedString(s.key)
	require.NoError(t, err)
	return raw
}

func (s signer) jwk() map[string]string {
	switch pub := s.key.Public().(type) {
	case *rsa.PublicKey:
		return map[string]string{
			"kty": "RSA",
			"kid": s.kid,
			"use": "sig",
			"alg": "RS256",
			"n":   b64(pub.N.Bytes()),
			"e":   b64(big.NewInt(int64(pub.E)).Bytes()),
		}
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		return map[string]string{
			"kty": "EC",
			"kid": s.kid,
			"crv": pub.Curve.Params().Name,
			"x":   b64(pub.X.FillBytes(make([]byte, size))),
			"y":   b64(pub.Y.FillBytes(make([]byte, size))),
		}
	}
	return nil
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// jwksServer serves a mutable key set and counts fetches.
type jwksServer struct {
	*httptest.Server

	mu      sync.Mutex
	signers []signer
	status  int
	fetches atomic.Int32
}

func newJWKSServer(t *testing.T, signers ...signer) *jwksServer {
	t.Helper()
	js := &jwksServer{signers: signers, status: http.StatusOK}
	js.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		js.fetches.Add(1)

		js.mu.Lock()
		status := js.status
		keys := make([]map[string]string, 0, len(js.signers))
		for _, s := range js.signers {
			keys = append(keys, s.jwk())
		}
		js.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))
	t.Cleanup(js.Close)
	return js
}

func (js *jwksServer) publish(signers ...signer) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.signers = signers
}

func (js *jwksServer) setStatus(status int) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.status = status
}
