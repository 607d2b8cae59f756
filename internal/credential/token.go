package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeQR tags QR credentials so API bearer tokens can never be replayed as one.
const TypeQR = "qr"

// ErrBadToken covers every signature, algorithm and shape failure.
var ErrBadToken = errors.New("bad credential token")

// Claims is the signed QR payload.
type Claims struct {
	SessionID string `json:"session_id"`
	Nonce     string `json:"nonce"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// Signer signs and verifies QR payloads with a key dedicated to credentials.
type Signer struct {
	key []byte
}

// NewSigner builds a signer; the key must not be empty.
func NewSigner(key string) (*Signer, error) {
	if key == "" {
		return nil, errors.New("credential signing key is empty")
	}
	return &Signer{key: []byte(key)}, nil
}

// Sign binds session, nonce and expiry into an HS256 token.
func (s *Signer) Sign(sessionID, nonce string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		Nonce:     nonce,
		Type:      TypeQR,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks signature, algorithm and type tag. Expiry is left to the
// caller so it can be reported as its own reason.
func (s *Signer) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrBadToken
	}
	if claims.Type != TypeQR || claims.SessionID == "" || claims.Nonce == "" || claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing or wrong claims", ErrBadToken)
	}
	return claims, nil
}
