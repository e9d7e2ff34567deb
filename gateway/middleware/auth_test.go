package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-signing-key"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func baseClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   sub,
		"iss":   "cantorfi",
		"aud":   "vaultd",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": "vault:write",
	}
}

func TestAuthenticatorResolvesCaller(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "cantorfi",
		Audience:   "vaultd",
	}, nil)
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	var seen common.Address
	handler := auth.Middleware("vault:write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/vaults/x/supply", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, baseClaims(alice.Hex())))
	if code := serve(t, handler, req); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen != alice {
		t.Fatalf("expected caller %s, got %s", alice.Hex(), seen.Hex())
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "cantorfi",
		Audience:   "vaultd",
	}, nil)
	handler := auth.Middleware("vault:write")(okHandler())
	alice := "0x00000000000000000000000000000000000000a1"

	expired := baseClaims(alice)
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAudience := baseClaims(alice)
	wrongAudience["aud"] = "other"
	noScope := baseClaims(alice)
	delete(noScope, "scope")
	noExpiry := baseClaims(alice)
	delete(noExpiry, "exp")

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing":        {"", http.StatusUnauthorized},
		"malformed":      {"Token abc", http.StatusUnauthorized},
		"expired":        {"Bearer " + signToken(t, expired), http.StatusUnauthorized},
		"no expiry":      {"Bearer " + signToken(t, noExpiry), http.StatusUnauthorized},
		"audience":       {"Bearer " + signToken(t, wrongAudience), http.StatusUnauthorized},
		"bad subject":    {"Bearer " + signToken(t, baseClaims("alice")), http.StatusUnauthorized},
		"missing scope":  {"Bearer " + signToken(t, noScope), http.StatusForbidden},
		"zero subject":   {"Bearer " + signToken(t, baseClaims(common.Address{}.Hex())), http.StatusUnauthorized},
		"signed by none": {"Bearer " + unsignedToken(t, baseClaims(alice)), http.StatusUnauthorized},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/vaults/x/supply", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if code := serve(t, handler, req); code != tc.want {
			t.Fatalf("%s: expected %d, got %d", name, tc.want, code)
		}
	}
}

func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	return signed
}

func TestAuthenticatorOptionalAndDisabled(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, OptionalPaths: []string{"/v1/vaults"}}, nil)
	handler := auth.Middleware()(okHandler())
	if code := serve(t, handler, httptest.NewRequest(http.MethodGet, "/v1/vaults", nil)); code != http.StatusOK {
		t.Fatalf("optional path must allow anonymous reads, got %d", code)
	}

	dev := NewAuthenticator(AuthConfig{Enabled: false}, nil)
	var seen common.Address
	devHandler := dev.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/vaults/x/supply", nil)
	req.Header.Set("X-Caller", "0x00000000000000000000000000000000000000b2")
	serve(t, devHandler, req)
	if seen != common.HexToAddress("0xb2") {
		t.Fatalf("dev mode must read X-Caller, got %s", seen.Hex())
	}
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.cantor.fi"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/vaults", nil)
	req.Header.Set("Origin", "https://app.cantor.fi")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://app.cantor.fi" {
		t.Fatalf("unexpected origin header %q", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/vaults", nil)
	other.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, other)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin must not be echoed, got %q", got)
	}
}
