// internal/platform/di/shared/secret_provider_sm.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
)

var errSecretProviderNotConfigured = errors.New("shared: secretProviderSM not configured")

// secretAccessor is the slice of *secretmanager.Client the provider calls.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// SecretProviderSM reads secret payloads from Secret Manager.
type SecretProviderSM struct {
	sm        secretAccessor
	projectID string
}

func NewSecretProviderSM(sm secretAccessor, projectID string) *SecretProviderSM {
	return &SecretProviderSM{sm: sm, projectID: projectID}
}

// Access returns the trimmed payload of secret.
// secret is either a full version name ("projects/p/secrets/s/versions/3")
// or a bare secret id, which resolves to its latest version in projectID.
func (p *SecretProviderSM) Access(ctx context.Context, secret string) (string, error) {
	if p == nil || p.sm == nil {
		return "", errSecretProviderNotConfigured
	}

	name, err := p.versionName(secret)
	if err != nil {
		return "", err
	}

	resp, err := p.sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secretProviderSM: AccessSecretVersion failed (%s): %w", name, err)
	}
	if resp == nil || resp.Payload == nil || len(resp.Payload.Data) == 0 {
		return "", fmt.Errorf("secretProviderSM: empty payload (%s)", name)
	}

	return strings.TrimSpace(string(resp.Payload.Data)), nil
}

func (p *SecretProviderSM) versionName(secret string) (string, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return "", errors.New("secretProviderSM: secret is empty")
	}
	if strings.HasPrefix(s, "projects/") {
		if !strings.Contains(s, "/versions/") {
			s += "/versions/latest"
		}
		return s, nil
	}

	prj := strings.TrimSpace(p.projectID)
	if prj == "" {
		return "", errors.New("secretProviderSM: projectID is empty")
	}
	return "projects/" + prj + "/secrets/" + s + "/versions/latest", nil
}
