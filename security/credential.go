// Package security provides the process-wide credential that accompanies
// every collaborator call.
//
// A Credential is fetched once at startup from an Issuer and then passed by
// value. Nothing in this package holds global state.
package security

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCredentialUnavailable indicates no credential could be obtained.
	ErrCredentialUnavailable = errors.New("security credential unavailable")

	// ErrUnauthenticated indicates a collaborator was called with an empty credential.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Credential is an immutable security token bound to an application id.
type Credential struct {
	securityID string
	token      string
	issuedAt   time.Time
}

// NewCredential creates a Credential.
func NewCredential(securityID, token string, issuedAt time.Time) Credential {
	return Credential{securityID: securityID, token: token, issuedAt: issuedAt}
}

// SecurityID returns the application id the token was issued to.
func (c Credential) SecurityID() string { return c.securityID }

// Token returns the opaque token.
func (c Credential) Token() string { return c.token }

// IssuedAt returns when the token was issued.
func (c Credential) IssuedAt() time.Time { return c.issuedAt }

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return c.token != ""
}

// Check returns ErrUnauthenticated if the credential is empty.
// Collaborator implementations call it before doing any work.
func (c Credential) Check() error {
	if !c.Valid() {
		return ErrUnauthenticated
	}
	return nil
}

// String never includes the token.
func (c Credential) String() string {
	return fmt.Sprintf("credential(%s)", c.securityID)
}

// Issuer obtains credentials.
type Issuer interface {
	// Fetch returns a credential for securityID.
	Fetch(ctx context.Context, securityID string) (Credential, error)
}

// Static is an Issuer that hands out a fixed, preconfigured token.
type Static struct {
	Token string
	Now   func() time.Time // Defaults to time.Now
}

var _ Issuer = (*Static)(nil)

// Fetch returns the configured token, or ErrCredentialUnavailable if none is set.
func (s *Static) Fetch(ctx context.Context, securityID string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}
	if s.Token == "" {
		return Credential{}, fmt.Errorf("%w: no token configured for %q", ErrCredentialUnavailable, securityID)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return NewCredential(securityID, s.Token, now().UTC()), nil
}
