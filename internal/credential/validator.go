package credential

import (
	"context"
	"errors"
	"time"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
)

// Grant is a credential that passed every check.
type Grant struct {
	SessionID    string
	Nonce        string
	CredentialID string
}

// Validator verifies presented credentials and consumes them.
type Validator struct {
	repo   Repository
	nonces NonceStore
	signer *Signer
	now    func() time.Time
}

// NewValidator wires a validator.
func NewValidator(repo Repository, nonces NonceStore, signer *Signer) *Validator {
	return &Validator{repo: repo, nonces: nonces, signer: signer, now: time.Now}
}

// WithClock swaps the time source.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs signature, expiry, ephemeral and durable checks in that order
// and stops at the first failure.
func (v *Validator) Validate(ctx context.Context, token string) (Grant, error) {
	claims, err := v.signer.Verify(token)
	if err != nil {
		return Grant{}, apperr.InvalidCredential(ReasonBadSignature, "invalid token signature")
	}

	now := v.now()
	if !now.Before(claims.ExpiresAt.Time) {
		return Grant{}, apperr.InvalidCredential(ReasonExpired, "token expired")
	}

	state, err := v.nonces.Lookup(ctx, claims.Nonce)
	if err != nil {
		return Grant{}, apperr.Infra("lookup nonce", err)
	}
	switch state {
	case NonceAbsent:
		return Grant{}, apperr.InvalidCredential(ReasonUnknownOrExpired, "token unknown or expired")
	case NonceUsed:
		return Grant{}, apperr.InvalidCredential(ReasonAlreadyUsed, "token already used")
	case NonceActive:
	default:
		return Grant{}, apperr.Wrap(apperr.KindInternal, "unexpected nonce state "+state.String(), nil)
	}

	rec, err := v.repo.FindByNonce(ctx, claims.Nonce, claims.SessionID)
	if errors.Is(err, ErrNotFound) {
		return Grant{}, apperr.InvalidCredential(ReasonNotFoundOrInactive, "token not found")
	}
	if err != nil {
		return Grant{}, apperr.Infra("load credential", err)
	}
	if rec.EffectiveStatus(now) != StatusActive {
		return Grant{}, apperr.InvalidCredential(ReasonNotFoundOrInactive, "token is not active")
	}

	return Grant{SessionID: claims.SessionID, Nonce: claims.Nonce, CredentialID: rec.ID}, nil
}

// Consume flips the nonce and the durable record to used. Both are attempted
// even if one fails; the joined error reports every failure.
func (v *Validator) Consume(ctx context.Context, g Grant) error {
	var errs []error

	flipped, err := v.nonces.MarkUsed(ctx, g.Nonce)
	switch {
	case err != nil:
		errs = append(errs, apperr.Infra("mark nonce used", err))
	case !flipped:
		errs = append(errs, apperr.InvalidCredential(ReasonAlreadyUsed, "nonce was no longer active"))
	}

	err = v.repo.MarkUsed(ctx, g.CredentialID)
	switch {
	case errors.Is(err, ErrNotActive):
		errs = append(errs, apperr.InvalidCredential(ReasonAlreadyUsed, "credential was no longer active"))
	case err != nil:
		errs = append(errs, apperr.Infra("mark credential used", err))
	}

	return errors.Join(errs...)
}
