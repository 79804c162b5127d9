// Package registry resolves the registry host an image reference pulls
// from and looks up the team's stored pull credential for it.
package registry

import (
	"encoding/base64"
	"strings"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/runtime"
)

const defaultRegistry = "docker.io"

// ExtractHost returns the registry host an image reference resolves to.
// A reference with no "/" has no namespace and is always docker.io; with
// a "/", the first path segment is the registry only if it looks like a
// host (contains "." or ":"), otherwise it's a namespace on docker.io.
func ExtractHost(imageRef string) string {
	slash := strings.Index(imageRef, "/")
	if slash < 0 {
		return defaultRegistry
	}
	firstSegment := imageRef[:slash]
	if strings.ContainsAny(firstSegment, ".:") {
		return firstSegment
	}
	return defaultRegistry
}

// CredentialStore is the subset of store.Store the lookup needs.
type CredentialStore interface {
	GetRegistryCredential(teamID, registryHost string) (*models.RegistryCredential, error)
}

// Lookup resolves the runtime.RegistryAuth for an image reference, or nil
// if no credential is stored for its registry host (public image pull).
func Lookup(store CredentialStore, teamID, imageRef string) (*runtime.RegistryAuth, error) {
	host := ExtractHost(imageRef)
	cred, err := store.GetRegistryCredential(teamID, host)
	if err != nil {
		if appErr, ok := err.(*errs.AppError); ok && appErr.Kind == errs.NotFound {
			return nil, nil
		}
		return nil, err
	}

	password, err := base64.StdEncoding.DecodeString(cred.Password)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "decode stored registry password", err)
	}

	return &runtime.RegistryAuth{Username: cred.Username, Password: string(password)}, nil
}
