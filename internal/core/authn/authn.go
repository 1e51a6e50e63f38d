// Package authn implements the request authenticator behind
// middleware.AuthPort: api key lookup, JWT/OIDC verification against a
// configured set of issuers, and the allowlist policy applied to whichever
// principal either method resolves.
package authn

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	perr "tower/internal/platform/errors"
	"tower/internal/platform/config"
)

// Mode selects which authentication method(s) a request must satisfy.
type Mode string

const (
	// ModeNone accepts every request without resolving a principal.
	ModeNone Mode = "none"
	// ModeAPIKey requires a recognized header/value pair.
	ModeAPIKey Mode = "api_key"
	// ModeJWT requires a bearer token verified against a configured issuer.
	ModeJWT Mode = "jwt"
	// ModeHybrid tries the api key first and falls back to JWT.
	ModeHybrid Mode = "hybrid"
)

// Provider describes one OIDC issuer this authenticator trusts.
type Provider struct {
	Name    string
	Issuer  string
	JWKSURL string
}

// Config is the fully-resolved authenticator configuration.
type Config struct {
	Mode Mode

	APIKeyHeaders []string          // header names checked, in order
	APIKeyUsers   map[string]string // header value -> user id

	Providers []Provider

	RequireHTTPS bool // reject jwt auth over plaintext, except from localhost

	AllowedUsers     []string // exact match, case-insensitive
	AllowedDomains   []string // email/upn/preferred_username domain match
	AllowedUserRegex []string // regex match against user and email-like string
}

// FromConf loads a Config from environment/env-file/yaml layers under the
// given Conf prefix. Complex values (api key users, providers) are encoded
// as comma-separated entries rather than nested structures, matching the
// flattened key space the rest of the config layer uses.
//
// AUTH_API_KEY_USERS entries are "headerValue=user".
// AUTH_JWT_PROVIDERS entries are "name|issuer|jwksURL".
func FromConf(c config.Conf) Config {
	cfg := Config{
		Mode:             Mode(strings.ToLower(c.MayEnum("MODE", "none", "none", "api_key", "jwt", "hybrid"))),
		APIKeyHeaders:    c.MayCSV("API_KEY_HEADERS", []string{"X-API-Key"}),
		APIKeyUsers:      parseKV(c.MayCSV("API_KEY_USERS", nil)),
		RequireHTTPS:     c.MayBool("JWT_REQUIRE_HTTPS", true),
		AllowedUsers:     c.MayCSV("ALLOWED_USERS", nil),
		AllowedDomains:   c.MayCSV("ALLOWED_DOMAINS", nil),
		AllowedUserRegex: c.MayCSV("ALLOWED_USER_REGEX", nil),
	}
	for _, raw := range c.MayCSV("JWT_PROVIDERS", nil) {
		parts := strings.SplitN(raw, "|", 3)
		if len(parts) != 3 {
			continue
		}
		cfg.Providers = append(cfg.Providers, Provider{
			Name:    strings.TrimSpace(parts[0]),
			Issuer:  strings.TrimSpace(parts[1]),
			JWKSURL: strings.TrimSpace(parts[2]),
		})
	}
	return cfg
}

func parseKV(entries []string) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// Authenticator implements middleware.AuthPort.
type Authenticator struct {
	cfg   Config
	regex []*regexp.Regexp
	jwks  *jwksCache
}

// New validates cfg and builds an Authenticator. It panics on malformed
// regexes in AllowedUserRegex since those are operator configuration
// mistakes, not request-time failures.
func New(cfg Config) *Authenticator {
	a := &Authenticator{cfg: cfg, jwks: newJWKSCache()}
	for _, pat := range cfg.AllowedUserRegex {
		re, err := regexp.Compile(pat)
		if err != nil {
			panic("authn: invalid allowed_user_regex " + pat + ": " + err.Error())
		}
		a.regex = append(a.regex, re)
	}
	return a
}

// Parse implements middleware.AuthPort. tenantID is the matching provider
// name for jwt-authenticated requests, empty otherwise.
func (a *Authenticator) Parse(r *http.Request) (userID string, tenantID string, err error) {
	switch a.cfg.Mode {
	case ModeNone, "":
		return "", "", nil
	case ModeAPIKey:
		return a.apiKeyAuth(r)
	case ModeJWT:
		return a.jwtAuth(r)
	case ModeHybrid:
		uid, tid, err := a.apiKeyAuth(r)
		if err == nil {
			return uid, tid, nil
		}
		return a.jwtAuth(r)
	default:
		return "", "", perr.Unauthorizedf("unsupported auth mode %q", a.cfg.Mode)
	}
}

func (a *Authenticator) apiKeyAuth(r *http.Request) (string, string, error) {
	for _, h := range a.cfg.APIKeyHeaders {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		if user, ok := a.cfg.APIKeyUsers[v]; ok {
			return user, "", nil
		}
	}
	return "", "", perr.Unauthorizedf("no valid api key presented")
}

func (a *Authenticator) jwtAuth(r *http.Request) (string, string, error) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", "", perr.Unauthorizedf("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", "", perr.Unauthorizedf("empty bearer token")
	}
	if a.cfg.RequireHTTPS && r.TLS == nil && !isLocalRequest(r) {
		return "", "", perr.Unauthorizedf("jwt auth requires https")
	}

	claims, provider, err := a.verify(r.Context(), token)
	if err != nil {
		return "", "", err
	}

	user := canonicalUser(claims)
	if user == "" {
		return "", "", perr.Unauthorizedf("token has no usable subject claim")
	}
	if err := a.checkAllowlist(user, claims); err != nil {
		return "", "", err
	}
	return user, provider, nil
}

// isLocalRequest reports whether the request's remote address is loopback,
// the exception the original controller grants for local development.
func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// canonicalUser picks the claim the rest of the system treats as the
// user's identifier, preferring preferred_username/email/upn over sub
// since those are the human-readable identifiers allowlists are written
// against.
func canonicalUser(claims map[string]any) string {
	for _, key := range []string{"preferred_username", "email", "upn", "sub"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// emailLike returns the best claim to match AllowedDomains/AllowedUserRegex
// against, falling back to the canonical user if no email-shaped claim
// exists.
func emailLike(user string, claims map[string]any) string {
	for _, key := range []string{"email", "preferred_username", "upn"} {
		if v, ok := claims[key].(string); ok && strings.Contains(v, "@") {
			return v
		}
	}
	return user
}

func (a *Authenticator) checkAllowlist(user string, claims map[string]any) error {
	if len(a.cfg.AllowedUsers) == 0 && len(a.cfg.AllowedDomains) == 0 && len(a.regex) == 0 {
		return nil
	}
	for _, u := range a.cfg.AllowedUsers {
		if strings.EqualFold(u, user) {
			return nil
		}
	}
	email := emailLike(user, claims)
	if _, domain, ok := strings.Cut(email, "@"); ok {
		for _, d := range a.cfg.AllowedDomains {
			if strings.EqualFold(d, domain) {
				return nil
			}
		}
	}
	for _, re := range a.regex {
		if re.MatchString(user) || re.MatchString(email) {
			return nil
		}
	}
	return perr.Forbiddenf("user %q is not in the allowed list", user)
}
