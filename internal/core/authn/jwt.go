package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	perr "tower/internal/platform/errors"
)

// allowedAlgorithms bounds which signature algorithms a presented token may
// use; algorithm confusion (e.g. accepting "none") is the classic JWT
// footgun, so this list is deliberately explicit rather than "whatever the
// token claims".
var allowedAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

// verify checks token's signature against the issuer it claims, returning
// the merged claim set and the name of the provider that verified it.
func (a *Authenticator) verify(ctx context.Context, token string) (map[string]any, string, error) {
	parsed, err := jwt.ParseSigned(token, allowedAlgorithms)
	if err != nil {
		return nil, "", perr.Unauthorizedf("malformed jwt: %v", err)
	}

	var unverified jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&unverified); err != nil {
		return nil, "", perr.Unauthorizedf("unreadable jwt claims: %v", err)
	}

	provider, ok := a.findProvider(unverified.Issuer)
	if !ok {
		return nil, "", perr.Unauthorizedf("unrecognized token issuer %q", unverified.Issuer)
	}

	set, err := a.jwks.get(ctx, provider.JWKSURL)
	if err != nil {
		return nil, "", perr.Unauthorizedf("fetch jwks for %s: %v", provider.Name, err)
	}

	var kid string
	if len(parsed.Headers) > 0 {
		kid = parsed.Headers[0].KeyID
	}
	keys := set.Key(kid)
	if len(keys) == 0 {
		keys = set.Keys
	}
	if len(keys) == 0 {
		return nil, "", perr.Unauthorizedf("no matching signing key for issuer %s", provider.Name)
	}

	var registered jwt.Claims
	var custom map[string]any
	var claimsErr error
	for _, k := range keys {
		if err := parsed.Claims(k, &registered, &custom); err == nil {
			claimsErr = nil
			break
		} else {
			claimsErr = err
		}
	}
	if claimsErr != nil {
		return nil, "", perr.Unauthorizedf("jwt signature verification failed: %v", claimsErr)
	}

	if err := registered.Validate(jwt.Expected{Issuer: provider.Issuer, Time: time.Now()}); err != nil {
		return nil, "", perr.Unauthorizedf("jwt claim validation failed: %v", err)
	}

	if custom == nil {
		custom = map[string]any{}
	}
	if _, ok := custom["sub"]; !ok && registered.Subject != "" {
		custom["sub"] = registered.Subject
	}
	return custom, provider.Name, nil
}

func (a *Authenticator) findProvider(issuer string) (Provider, bool) {
	for _, p := range a.cfg.Providers {
		if p.Issuer == issuer {
			return p, true
		}
	}
	return Provider{}, false
}

// jwksCache fetches and caches JSON Web Key Sets by URL, since verifying a
// token should not mean a network round trip per request.
type jwksCache struct {
	mu      sync.RWMutex
	entries map[string]jwksEntry
	ttl     time.Duration
	client  *http.Client
}

type jwksEntry struct {
	set     jose.JSONWebKeySet
	fetched time.Time
}

func newJWKSCache() *jwksCache {
	return &jwksCache{
		entries: map[string]jwksEntry{},
		ttl:     10 * time.Minute,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *jwksCache) get(ctx context.Context, url string) (jose.JSONWebKeySet, error) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()
	if ok && time.Since(e.fetched) < c.ttl {
		return e.set, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("jwks fetch %s: status %d", url, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("decode jwks %s: %w", url, err)
	}

	c.mu.Lock()
	c.entries[url] = jwksEntry{set: set, fetched: time.Now()}
	c.mu.Unlock()
	return set, nil
}
