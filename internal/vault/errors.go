package vault

import (
	"errors"
	"fmt"

	"github.com/congo-pay/custody_vault/internal/custody"
)

var (
	// ErrTransferFailed reports that the external transfer capability refused
	// a movement. The cause is available through errors.Unwrap.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrCommitFailed reports that the store could not commit a unit of work.
	ErrCommitFailed = errors.New("commit failed")
)

// TransferFailedError carries the refused movement and the capability's reason.
type TransferFailedError struct {
	Movement custody.Movement
	Err      error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer failed: %s: %v", e.Movement, e.Err)
}

func (e *TransferFailedError) Is(target error) bool {
	return target == ErrTransferFailed
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}
