package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/scimbridge/scimbridge/pkg/middleware"
)

// OIDCVerifier validates bearer tokens issued by an OIDC provider, for
// deployments where the provisioning client authenticates with IdP-issued
// tokens instead of a shared secret.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuer and builds a verifier for
// the given client ID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return token, nil
}
