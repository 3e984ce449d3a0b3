package identity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Credential binds an account address to a caller secret.
type Credential struct {
	Account      common.Address
	SecretHash   []byte
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials request structure. Signature is only read by Register.
type Credentials struct {
	Account   common.Address
	Secret    string
	Signature []byte
}
