package authn

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	perr "tower/internal/platform/errors"
)

func signToken(t *testing.T, key *rsa.PrivateKey, kid, issuer string, extra map[string]any) string {
	t.Helper()
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithHeader("kid", kid))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	claims := jwt.Claims{
		Issuer:   issuer,
		Subject:  "00000-aaaa",
		Expiry:   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	tok, err := jwt.Signed(sig).Claims(claims).Claims(extra).Serialize()
	if err != nil {
		t.Fatalf("serialize token: %v", err)
	}
	return tok
}

func jwksServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     kid,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
}

func TestJWTAuthVerifiesTokenAgainstJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, key, "kid-1")
	defer srv.Close()

	a := New(Config{
		Mode:         ModeJWT,
		RequireHTTPS: false,
		Providers:    []Provider{{Name: "corp", Issuer: "https://issuer.example", JWKSURL: srv.URL}},
	})

	token := signToken(t, key, "kid-1", "https://issuer.example", map[string]any{"preferred_username": "alice"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	uid, provider, err := a.Parse(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "alice" {
		t.Fatalf("expected alice, got %q", uid)
	}
	if provider != "corp" {
		t.Fatalf("expected provider corp, got %q", provider)
	}
}

func TestJWTAuthRejectsUnknownIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, key, "kid-1")
	defer srv.Close()

	a := New(Config{
		Mode:         ModeJWT,
		RequireHTTPS: false,
		Providers:    []Provider{{Name: "corp", Issuer: "https://issuer.example", JWKSURL: srv.URL}},
	})

	token := signToken(t, key, "kid-1", "https://other.example", nil)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, _, err = a.Parse(r)
	if perr.CodeOf(err) != perr.ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown issuer, got %v", err)
	}
}

func TestJWTAuthEnforcesAllowlistAfterVerification(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, key, "kid-1")
	defer srv.Close()

	a := New(Config{
		Mode:         ModeJWT,
		RequireHTTPS: false,
		Providers:    []Provider{{Name: "corp", Issuer: "https://issuer.example", JWKSURL: srv.URL}},
		AllowedUsers: []string{"bob"},
	})

	token := signToken(t, key, "kid-1", "https://issuer.example", map[string]any{"preferred_username": "alice"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, _, err = a.Parse(r)
	if perr.CodeOf(err) != perr.ErrorCodeForbidden {
		t.Fatalf("expected forbidden for non-allowlisted user, got %v", err)
	}
}

func TestJWTAuthRequiresHTTPSUnlessLocal(t *testing.T) {
	a := New(Config{
		Mode:         ModeJWT,
		RequireHTTPS: true,
		Providers:    []Provider{{Name: "corp", Issuer: "https://issuer.example", JWKSURL: "http://unused.invalid"}},
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:1234"
	r.Header.Set("Authorization", "Bearer x.y.z")

	_, _, err := a.Parse(r)
	if perr.CodeOf(err) != perr.ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized for plaintext non-local request, got %v", err)
	}
}

func TestJWTAuthAllowsPlaintextFromLocalhost(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, key, "kid-1")
	defer srv.Close()

	a := New(Config{
		Mode:         ModeJWT,
		RequireHTTPS: true,
		Providers:    []Provider{{Name: "corp", Issuer: "https://issuer.example", JWKSURL: srv.URL}},
	})

	token := signToken(t, key, "kid-1", "https://issuer.example", map[string]any{"preferred_username": "alice"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:5555"
	r.Header.Set("Authorization", "Bearer "+token)

	if _, _, err := a.Parse(r); err != nil {
		t.Fatalf("expected localhost exception to allow plaintext, got %v", err)
	}
}
