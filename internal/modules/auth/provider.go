package auth

import (
	"context"
	"fmt"
	"time"

	"authcore/internal/domain"
)

// DefaultProvider is the provider name stamped onto sessions when the
// login request does not name one.
const DefaultProvider = "local"

// CredentialProvider mints the access credential for a session. The
// default provider signs locally; non-default providers (external
// issuers) implement the same interface and are selected by the
// provider name recorded on the session.
type CredentialProvider interface {
	IssueAccessCredential(ctx context.Context, s *domain.Session) (token string, expiresAt time.Time, err error)
}

// ProviderRegistry resolves credential providers by name.
type ProviderRegistry struct {
	providers map[string]CredentialProvider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]CredentialProvider)}
}

func (r *ProviderRegistry) Register(name string, p CredentialProvider) {
	r.providers[name] = p
}

func (r *ProviderRegistry) Resolve(name string) (CredentialProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// LocalProvider signs access tokens with the in-process issuer.
type LocalProvider struct {
	issuer AccessTokenIssuer
}

func NewLocalProvider(issuer AccessTokenIssuer) *LocalProvider {
	return &LocalProvider{issuer: issuer}
}

func (p *LocalProvider) IssueAccessCredential(ctx context.Context, s *domain.Session) (string, time.Time, error) {
	return p.issuer.Issue(s.ID, s.Version, s.SubjectID)
}
