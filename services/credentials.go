package services

import (
	"golang.org/x/crypto/bcrypt"
)

// maxCredentialBytes is the longest secret bcrypt accepts.
const maxCredentialBytes = 72

// CredentialVerifier turns a secret into a stored verifier and checks it later.
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}

// BcryptVerifier is the production verifier.
type BcryptVerifier struct {
	Cost int
}

func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{Cost: cost}
}

// Hash always hashes, whatever the secret looks like.
func (v *BcryptVerifier) Hash(secret string) (string, error) {
	if len(secret) > maxCredentialBytes {
		return "", ErrCredentialTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), v.Cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (v *BcryptVerifier) Verify(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
