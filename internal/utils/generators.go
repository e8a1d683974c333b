package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBookingReference returns a human-readable booking reference
// like "EF7K2M9QX4". Uniqueness is enforced by the database constraint;
// collisions at this length are vanishingly rare.
func GenerateBookingReference() string {
	return "EF" + randomAlphanumeric(8)
}

// GenerateTicketCode returns a short gate-readable ticket code.
func GenerateTicketCode() string {
	return "TK" + randomAlphanumeric(10)
}

func randomAlphanumeric(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unreachable; fall back
			// to a timestamp-derived character rather than panicking.
			out[i] = referenceAlphabet[int(time.Now().UnixNano())%len(referenceAlphabet)]
			continue
		}
		out[i] = referenceAlphabet[idx.Int64()]
	}
	return string(out)
}

// GenerateEntryID returns a ledger entry identifier.
func GenerateEntryID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("ce_%d_%09d", timestamp, randomNum.Int64())
}
