package registry

import (
	"encoding/base64"
	"testing"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

func TestExtractHost(t *testing.T) {
	cases := []struct {
		image string
		want  string
	}{
		{"nginx:alpine", "docker.io"},
		{"library/nginx", "docker.io"},
		{"myorg/myapp:latest", "docker.io"},
		{"ghcr.io/myorg/myapp:latest", "ghcr.io"},
		{"registry.example.com:5000/myapp", "registry.example.com:5000"},
		{"localhost:5000/myapp", "localhost:5000"},
	}
	for _, tc := range cases {
		if got := ExtractHost(tc.image); got != tc.want {
			t.Errorf("ExtractHost(%q) = %q, want %q", tc.image, got, tc.want)
		}
	}
}

type fakeCredentialStore struct {
	creds map[string]*models.RegistryCredential
}

func (f *fakeCredentialStore) GetRegistryCredential(teamID, registryHost string) (*models.RegistryCredential, error) {
	cred, ok := f.creds[registryHost]
	if !ok {
		return nil, errs.New(errs.NotFound, "no credential for host")
	}
	return cred, nil
}

func TestLookupReturnsNilForUncredentialedRegistry(t *testing.T) {
	store := &fakeCredentialStore{creds: map[string]*models.RegistryCredential{}}

	auth, err := Lookup(store, "team-1", "nginx:alpine")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if auth != nil {
		t.Errorf("Lookup() = %v, want nil for public image", auth)
	}
}

func TestLookupDecodesStoredPassword(t *testing.T) {
	store := &fakeCredentialStore{creds: map[string]*models.RegistryCredential{
		"ghcr.io": {
			Username: "deploy-bot",
			Password: base64.StdEncoding.EncodeToString([]byte("s3cret")),
		},
	}}

	auth, err := Lookup(store, "team-1", "ghcr.io/myorg/myapp:latest")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if auth == nil {
		t.Fatal("Lookup() = nil, want non-nil auth")
	}
	if auth.Username != "deploy-bot" || auth.Password != "s3cret" {
		t.Errorf("Lookup() = %+v, want username=deploy-bot password=s3cret", auth)
	}
}
