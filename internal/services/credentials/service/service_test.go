package service

import (
	"context"
	"testing"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
)

type pointOnlyCred struct{}

func (pointOnlyCred) GetSSHCredentials(_ context.Context, _ string) (plugins.SSHCredentials, error) {
	return plugins.SSHCredentials{}, nil
}

type enumeratingCred struct{ ids []string }

func (enumeratingCred) GetSSHCredentials(_ context.Context, _ string) (plugins.SSHCredentials, error) {
	return plugins.SSHCredentials{}, nil
}
func (e enumeratingCred) ListCredentialIDs(_ context.Context) ([]string, error) { return e.ids, nil }

func TestNewPanicsOnNilPort(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on nil CredentialPort")
		}
	}()
	New(nil)
}

func TestListRejectsNonEnumeratingPlugin(t *testing.T) {
	svc := New(pointOnlyCred{})
	_, err := svc.List(context.Background())
	if err == nil || perr.CodeOf(err) != perr.ErrorCodeUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestListReturnsSortedIDs(t *testing.T) {
	svc := New(enumeratingCred{ids: []string{"readonly", "default"}})
	res, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Count != 2 || res.CredentialIDs[0] != "default" || res.CredentialIDs[1] != "readonly" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
