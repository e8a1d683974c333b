package tickets_test

import (
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/keys"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
)

type stubKeys struct {
	current  keys.SigningKey
	previous *keys.SigningKey
}

func (s *stubKeys) Current() (keys.SigningKey, error) {
	if s.current.Secret == "" {
		return keys.SigningKey{}, fmt.Errorf("no key configured")
	}
	return s.current, nil
}

func (s *stubKeys) Previous() (keys.SigningKey, bool) {
	if s.previous == nil {
		return keys.SigningKey{}, false
	}
	return *s.previous, true
}

func sampleClaims() tickets.TokenClaims {
	return tickets.TokenClaims{
		TicketID:  "ticket-1",
		BookingID: "booking-1",
		TierID:    "tier-1",
		EventID:   "event-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "buyer-1",
		},
	}
}

func TestSignVerifyRoundtrip(t *testing.T) {
	signer := tickets.NewSigner(&stubKeys{current: keys.SigningKey{ID: "k1", Secret: "secret-one"}})

	token, err := signer.Sign(sampleClaims())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", claims.TicketID)
	assert.Equal(t, "booking-1", claims.BookingID)
	assert.Equal(t, "event-1", claims.EventID)
	assert.Equal(t, "buyer-1", claims.Subject)
}

func TestVerifyAcceptsPreviousKeyAfterRotation(t *testing.T) {
	oldKey := keys.SigningKey{ID: "k1", Secret: "secret-one"}
	signer := tickets.NewSigner(&stubKeys{current: oldKey})

	token, err := signer.Sign(sampleClaims())
	require.NoError(t, err)

	// Rotate: the old key becomes previous, a new key becomes current.
	rotated := tickets.NewSigner(&stubKeys{
		current:  keys.SigningKey{ID: "k2", Secret: "secret-two"},
		previous: &oldKey,
	})

	claims, err := rotated.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", claims.TicketID)
}

func TestVerifyRejectsAfterDoubleRotation(t *testing.T) {
	signer := tickets.NewSigner(&stubKeys{current: keys.SigningKey{ID: "k1", Secret: "secret-one"}})
	token, err := signer.Sign(sampleClaims())
	require.NoError(t, err)

	// Two rotations later the issuing key is gone from the provider.
	stale := tickets.NewSigner(&stubKeys{
		current:  keys.SigningKey{ID: "k3", Secret: "secret-three"},
		previous: &keys.SigningKey{ID: "k2", Secret: "secret-two"},
	})

	_, err = stale.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	signer := tickets.NewSigner(&stubKeys{current: keys.SigningKey{ID: "k1", Secret: "secret-one"}})

	token, err := signer.Sign(sampleClaims())
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = signer.Verify(tampered)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuing := tickets.NewSigner(&stubKeys{current: keys.SigningKey{ID: "k1", Secret: "secret-one"}})
	token, err := issuing.Sign(sampleClaims())
	require.NoError(t, err)

	other := tickets.NewSigner(&stubKeys{current: keys.SigningKey{ID: "k1", Secret: "a-different-secret"}})
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestSignFailsWithoutKey(t *testing.T) {
	signer := tickets.NewSigner(&stubKeys{})
	_, err := signer.Sign(sampleClaims())
	assert.Error(t, err)
}
