// Package vaultcred implements plugins.CredentialPort against HashiCorp
// Vault's KV secrets engine, grounded on the worker's VaultClient/
// VaultCredentialStore: AppRole or direct-token auth, a startup health and
// token-access check, and one secret read per credential lookup.
package vaultcred

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
)

// Config configures how the store authenticates to Vault.
type Config struct {
	Addr       string
	Token      string // direct-token (dev) mode
	RoleID     string // AppRole mode
	SecretID   string
	MountPath  string // KV mount, defaults to "secret"
	PathPrefix string // credential path prefix, defaults to "credentials"
}

// Store resolves SSH credentials from Vault KV entries at
// {mount}/data/{prefix}/{credential_id}, matching the worker's
// "credentials/{id}" path convention under the v2 KV data endpoint.
type Store struct {
	client *vaultapi.Client
	cfg    Config
}

// New builds a Vault API client and authenticates per cfg: AppRole when
// RoleID/SecretID are both set, otherwise the direct token. Mirrors
// VaultClient.from_settings' auto-detection.
func New(cfg Config) (*Store, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "credentials"
	}

	vc := vaultapi.DefaultConfig()
	vc.Address = cfg.Addr
	client, err := vaultapi.NewClient(vc)
	if err != nil {
		return nil, perr.Storef("construct vault client: %v", err)
	}

	s := &Store{client: client, cfg: cfg}

	switch {
	case cfg.RoleID != "" && cfg.SecretID != "":
		if err := s.loginAppRole(context.Background()); err != nil {
			return nil, err
		}
	case cfg.Token != "":
		client.SetToken(cfg.Token)
	default:
		return nil, perr.InvalidArgf(
			"vault credential store requires either a token or role_id+secret_id")
	}
	return s, nil
}

func (s *Store) loginAppRole(ctx context.Context) error {
	secret, err := s.client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]any{
		"role_id":   s.cfg.RoleID,
		"secret_id": s.cfg.SecretID,
	})
	if err != nil || secret == nil || secret.Auth == nil {
		return perr.Unauthorizedf("approle authentication failed: %v", err)
	}
	s.client.SetToken(secret.Auth.ClientToken)
	return nil
}

// Validate checks Vault connectivity (Sys().Health) and that the current
// token can look itself up, matching create_and_validate's two-step check.
func (s *Store) Validate(ctx context.Context) error {
	if _, err := s.client.Sys().HealthWithContext(ctx); err != nil {
		return perr.Unavailablef("vault health check failed: %v", err)
	}
	if _, err := s.client.Auth().Token().LookupSelfWithContext(ctx); err != nil {
		return perr.Unauthorizedf("vault token validation failed: %v", err)
	}
	return nil
}

func (s *Store) GetSSHCredentials(ctx context.Context, credentialID string) (plugins.SSHCredentials, error) {
	path := fmt.Sprintf("%s/data/%s/%s", s.cfg.MountPath, s.cfg.PathPrefix, credentialID)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return plugins.SSHCredentials{}, perr.Unauthorizedf("read secret at %s: %v", path, err)
	}
	if secret == nil || secret.Data == nil {
		return plugins.SSHCredentials{}, perr.NotFoundf("no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return plugins.SSHCredentials{}, perr.InvalidArgf("malformed vault secret data at %s", path)
	}

	username, _ := data["username"].(string)
	password, _ := data["password"].(string)
	if username == "" || password == "" {
		return plugins.SSHCredentials{}, perr.InvalidArgf("credential %s missing username or password in vault", credentialID)
	}

	return plugins.SSHCredentials{CredentialID: credentialID, Username: username, Password: password}, nil
}

// ListCredentialIDs lists the credential ids under the configured KV mount
// and prefix via Vault's metadata list endpoint.
func (s *Store) ListCredentialIDs(ctx context.Context) ([]string, error) {
	path := fmt.Sprintf("%s/metadata/%s", s.cfg.MountPath, s.cfg.PathPrefix)

	secret, err := s.client.Logical().ListWithContext(ctx, path)
	if err != nil {
		return nil, perr.Unauthorizedf("list secrets at %s: %v", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, perr.InvalidArgf("malformed vault list response at %s", path)
	}

	ids := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
