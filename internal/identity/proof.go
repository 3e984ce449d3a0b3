package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidProof is returned when a registration signature does not recover
// to the account being registered.
var ErrInvalidProof = errors.New("signature does not prove control of account")

// RegistrationMessage is the text an account key signs to register a secret.
// It commits to the secret so a captured signature cannot register another one.
func RegistrationMessage(account common.Address, secret string) []byte {
	commitment := crypto.Keccak256Hash([]byte(secret))
	return []byte(fmt.Sprintf("custody vault registration\naccount: %s\nsecret: %s", account.Hex(), commitment.Hex()))
}

// SignRegistration signs the registration message of key's account with the
// personal_sign prefix, as wallets do.
func SignRegistration(key *ecdsa.PrivateKey, secret string) ([]byte, error) {
	account := crypto.PubkeyToAddress(key.PublicKey)
	return crypto.Sign(textHash(RegistrationMessage(account, secret)), key)
}

// VerifyControl checks that sig was produced by the key of account over the
// registration message for secret. Both 0/1 and 27/28 recovery ids are accepted.
func VerifyControl(account common.Address, secret string, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return ErrInvalidProof
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(textHash(RegistrationMessage(account, secret)), sig)
	if err != nil {
		return ErrInvalidProof
	}
	if crypto.PubkeyToAddress(*pub) != account {
		return ErrInvalidProof
	}
	return nil
}

func textHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}
