package auth

import (
	"context"
	"testing"
	"time"

	"authcore/internal/domain"
	jwtsvc "authcore/internal/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRegistryResolve(t *testing.T) {
	issuer := jwtsvc.New("test-secret", time.Minute)
	reg := NewProviderRegistry()
	reg.Register(DefaultProvider, NewLocalProvider(issuer))

	p, err := reg.Resolve(DefaultProvider)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = reg.Resolve("saml")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestLocalProviderIssuesVerifiableToken(t *testing.T) {
	issuer := jwtsvc.New("test-secret", time.Minute)
	p := NewLocalProvider(issuer)

	sess := &domain.Session{
		ID:        uuid.New(),
		SubjectID: "u1",
		Version:   4,
	}
	token, exp, err := p.IssueAccessCredential(context.Background(), sess)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID.String(), claims.SessionID)
	assert.Equal(t, int64(4), claims.SessionVersion)
	assert.Equal(t, "u1", claims.Subject)
}
