package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RefineAPI/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Unix(1730000000, 0)

func hsConfig() config.JWTConfig {
	return config.JWTConfig{
		ValidationType: "HS256",
		Issuer:         "auth-service",
		Audience:       "refine-api",
		HMACSecret:     "super-secret",
	}
}

func newTestValidator(t *testing.T, cfg config.JWTConfig) *Validator {
	t.Helper()
	v, err := NewValidator(cfg)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	v.clockFunc = func() time.Time { return testNow }
	return v
}

func baseClaims(cfg config.JWTConfig) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": cfg.Issuer,
		"aud": cfg.Audience,
		"iat": testNow.Unix() - 10,
		"nbf": testNow.Unix() - 5,
		"exp": testNow.Unix() + 30,
		"sub": "user-1",
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return token
}

func TestHS256ValidateToken(t *testing.T) {
	cfg := hsConfig()
	v := newTestValidator(t, cfg)

	claims, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), baseClaims(cfg)))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims["sub"] != "user-1" {
		t.Fatalf("unexpected sub: %v", claims["sub"])
	}
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := hsConfig()
	v := newTestValidator(t, cfg)

	for name, mutate := range map[string]func(jwt.MapClaims){
		"expired":      func(c jwt.MapClaims) { c["exp"] = testNow.Unix() - 1 },
		"missing exp":  func(c jwt.MapClaims) { delete(c, "exp") },
		"not yet":      func(c jwt.MapClaims) { c["nbf"] = testNow.Unix() + 60 },
		"wrong issuer": func(c jwt.MapClaims) { c["iss"] = "someone-else" },
		"wrong aud":    func(c jwt.MapClaims) { c["aud"] = []string{"other-api"} },
	} {
		claims := baseClaims(cfg)
		mutate(claims)
		if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), claims)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte("other-secret"), baseClaims(cfg))); err == nil {
		t.Fatal("bad signature: expected error")
	}
}

func TestRS256ValidateToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}

	cfg := config.JWTConfig{
		ValidationType: "RS256",
		Issuer:         "auth-service",
		Audience:       "refine-api",
		PublicKeyPEM:   string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}
	v := newTestValidator(t, cfg)

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodRS256, priv, baseClaims(cfg))); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	// An HS256 token signed with the public key bytes must not pass.
	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, pubDER, baseClaims(cfg))); err == nil {
		t.Fatal("algorithm confusion accepted")
	}
}

func TestES256ValidateToken(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	cfg := config.JWTConfig{
		ValidationType: "ES256",
		Issuer:         "auth-service",
		Audience:       "refine-api",
		PublicKeyPEM:   string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}
	v := newTestValidator(t, cfg)
	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodES256, priv, baseClaims(cfg))); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
}

func TestRoleChecker(t *testing.T) {
	check := RoleChecker("roles")
	if check(context.Background(), []string{"admin"}) {
		t.Fatal("no claims must hold no roles")
	}
	for _, raw := range []any{"viewer admin", []any{"viewer", "admin"}, "viewer,admin"} {
		ctx := WithClaims(context.Background(), jwt.MapClaims{"roles": raw})
		if !check(ctx, []string{"admin", "owner"}) {
			t.Fatalf("roles %v should grant admin", raw)
		}
		if check(ctx, []string{"owner"}) {
			t.Fatalf("roles %v should not grant owner", raw)
		}
	}
}

func TestMiddleware(t *testing.T) {
	cfg := hsConfig()
	v := newTestValidator(t, cfg)
	h := Middleware(v, func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := Subject(r.Context()); !ok || sub != "user-1" {
			t.Fatalf("subject not in context: %q", sub)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), baseClaims(cfg)))
	w = httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", w.Code)
	}
}
