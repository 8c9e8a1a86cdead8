package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// dummyHashes caches one throwaway hash per bcrypt cost.
var dummyHashes sync.Map

func dummyHash(cost int) []byte {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		h, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	}
	actual, _ := dummyHashes.LoadOrStore(cost, h)
	return actual.([]byte)
}

// BurnPasswordCheck runs a bcrypt comparison against a throwaway hash of
// the given cost so that a login for an unknown account costs the same as
// a wrong password.  cost must match the cost of stored hashes.
func BurnPasswordCheck(plain string, cost int) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(cost), []byte(plain))
}
