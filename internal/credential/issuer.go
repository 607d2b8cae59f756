package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
	"github.com/crisb2reis/Sistema-Escolar/internal/metrics"
	"github.com/crisb2reis/Sistema-Escolar/internal/session"
)

// Sessions is the slice of the session registry the issuer depends on.
type Sessions interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

// Renderer turns a signed payload into a scannable image.
type Renderer interface {
	Render(token string) (string, error)
}

// IssuerConfig bounds credential lifetimes.
type IssuerConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// Issued is what a teacher receives for display.
type Issued struct {
	TokenID   string    `json:"token_id"`
	Token     string    `json:"token"`
	QRImage   string    `json:"qr_image"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer mints single-use QR credentials for open sessions.
type Issuer struct {
	sessions Sessions
	repo     Repository
	nonces   NonceStore
	signer   *Signer
	render   Renderer
	cfg      IssuerConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewIssuer wires an issuer.
func NewIssuer(sessions Sessions, repo Repository, nonces NonceStore, signer *Signer, render Renderer, cfg IssuerConfig, log logrus.FieldLogger) *Issuer {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 10 * time.Minute
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	return &Issuer{
		sessions: sessions,
		repo:     repo,
		nonces:   nonces,
		signer:   signer,
		render:   render,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock swaps the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue mints a credential for sessionID. ttlMinutes overrides the default
// lifetime and must be positive when given.
func (i *Issuer) Issue(ctx context.Context, actor auth.Identity, sessionID string, ttlMinutes *int) (Issued, error) {
	s, err := i.sessions.Get(ctx, sessionID)
	if err != nil {
		return Issued{}, err
	}
	if !actor.CanManage(s.TeacherID) {
		return Issued{}, apperr.Forbidden("not authorized to generate QR for this session")
	}
	if !s.Open() {
		return Issued{}, apperr.State("session is not open")
	}

	ttl := i.cfg.DefaultTTL
	if ttlMinutes != nil {
		if *ttlMinutes <= 0 {
			return Issued{}, apperr.Validation("expires_in_minutes must be a positive integer")
		}
		// Compare before converting; large values overflow time.Duration.
		if int64(*ttlMinutes) > int64(i.cfg.MaxTTL/time.Minute) {
			return Issued{}, apperr.Validation("expires_in_minutes exceeds the allowed maximum")
		}
		ttl = time.Duration(*ttlMinutes) * time.Minute
	}
	if ttl > i.cfg.MaxTTL {
		return Issued{}, apperr.Validation("expires_in_minutes exceeds the allowed maximum")
	}

	nonceID, err := uuid.NewRandom()
	if err != nil {
		return Issued{}, apperr.Infra("generate nonce", err)
	}
	nonce := nonceID.String()

	// The signed exp has whole-second precision; keep the stored and
	// returned expiry identical to it.
	now := i.now().UTC()
	expiresAt := now.Add(ttl).Truncate(time.Second)
	token, err := i.signer.Sign(s.ID, nonce, now, expiresAt)
	if err != nil {
		return Issued{}, apperr.Wrap(apperr.KindInternal, "sign credential", err)
	}

	rec := Record{
		ID:        uuid.NewString(),
		TokenID:   uuid.NewString(),
		SessionID: s.ID,
		Payload:   token,
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Status:    StatusActive,
	}
	if err := i.repo.Insert(ctx, rec); err != nil {
		return Issued{}, apperr.Infra("store credential", err)
	}
	if err := i.nonces.Register(ctx, nonce, expiresAt.Sub(now)); err != nil {
		// The durable row stays ACTIVE but is unreachable without its nonce.
		i.log.WithFields(logrus.Fields{"session_id": s.ID, "token_id": rec.TokenID}).WithError(err).
			Error("nonce registration failed after credential was stored")
		if errors.Is(err, ErrNonceExists) {
			return Issued{}, apperr.Wrap(apperr.KindInternal, "nonce collision, reissue the credential", err)
		}
		return Issued{}, apperr.Infra("register nonce, reissue the credential", err)
	}

	image, err := i.render.Render(token)
	if err != nil {
		return Issued{}, apperr.Wrap(apperr.KindInternal, "render QR image", err)
	}

	metrics.TokensIssued.Inc()
	i.log.WithFields(logrus.Fields{
		"session_id": s.ID,
		"token_id":   rec.TokenID,
		"expires_at": expiresAt,
	}).Info("credential issued")

	return Issued{TokenID: rec.TokenID, Token: token, QRImage: image, ExpiresAt: expiresAt}, nil
}
