package api

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"
	"time"
)

func TestJWKSKeyCacheRoundTrip(t *testing.T) {
	key := &rsa.PublicKey{N: big.NewInt(12345), E: 65537}
	storeJWKSKey("https://jwks.example#kid-1", key)

	got, ok := cachedJWKSKey("https://jwks.example#kid-1")
	if !ok {
		t.Fatal("expected a cache hit for a freshly stored key")
	}
	if got != key {
		t.Errorf("cache returned a different key: %v", got)
	}

	if _, ok := cachedJWKSKey("https://jwks.example#kid-2"); ok {
		t.Error("unexpected cache hit for an unknown kid")
	}
}

func TestJWKSKeyCacheExpiresAfterTTL(t *testing.T) {
	jwksCacheMu.Lock()
	jwksCache["https://jwks.example#stale-kid"] = jwksCacheEntry{
		key:       &rsa.PublicKey{N: big.NewInt(1), E: 65537},
		fetchedAt: time.Now().Add(-jwksCacheTTL - time.Minute),
	}
	jwksCacheMu.Unlock()

	if _, ok := cachedJWKSKey("https://jwks.example#stale-kid"); ok {
		t.Fatal("expected an expired entry to miss so rotated keys are re-fetched")
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	modulus := big.NewInt(0).SetBytes([]byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	n := base64.RawURLEncoding.EncodeToString(modulus.Bytes())
	e := base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00, 0x01})

	parsed, err := parseRSAPublicKey(n, e)
	if err != nil {
		t.Fatalf("parseRSAPublicKey returned error: %v", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", parsed)
	}
	if pub.E != 65537 {
		t.Errorf("expected exponent 65537, got %d", pub.E)
	}
	if pub.N.Cmp(modulus) != 0 {
		t.Errorf("modulus mismatch: got %s, want %s", pub.N, modulus)
	}
}

func TestParseRSAPublicKeyRejectsInvalidEncoding(t *testing.T) {
	if _, err := parseRSAPublicKey("not-base64!!", "AQAB"); err == nil {
		t.Error("expected error for invalid modulus encoding")
	}
	if _, err := parseRSAPublicKey("AQAB", "not-base64!!"); err == nil {
		t.Error("expected error for invalid exponent encoding")
	}
}
