package tickets

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"ms-booking/internal/keys"
	"ms-booking/internal/models"
)

// TokenClaims binds a ticket to its booking, tier and event. The token
// is the only thing the gate needs: verification is offline, no
// database round trip, and a token from one event can never check in
// at another because the event id is part of the signed payload.
type TokenClaims struct {
	TicketID  string `json:"tid"`
	BookingID string `json:"bid"`
	TierID    string `json:"tier"`
	EventID   string `json:"eid"`
	jwt.RegisteredClaims
}

type Signer struct {
	keys keys.Provider
}

func NewSigner(provider keys.Provider) *Signer {
	return &Signer{keys: provider}
}

func (s *Signer) Sign(claims TokenClaims) (string, error) {
	key, err := s.keys.Current()
	if err != nil {
		return "", fmt.Errorf("no signing key available: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = key.ID
	return token.SignedString([]byte(key.Secret))
}

// Verify checks the token against the current key, then the
// immediately-prior one, so a key rotation does not strand tickets
// issued minutes before it.
func (s *Signer) Verify(tokenString string) (*TokenClaims, error) {
	current, err := s.keys.Current()
	if err != nil {
		return nil, fmt.Errorf("no verification key available: %w", err)
	}

	candidates := []keys.SigningKey{current}
	if previous, ok := s.keys.Previous(); ok {
		candidates = append(candidates, previous)
	}

	for _, key := range candidates {
		claims := &TokenClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(key.Secret), nil
		})
		if err == nil && token.Valid {
			return claims, nil
		}
	}
	return nil, models.ErrInvalidSignature
}
