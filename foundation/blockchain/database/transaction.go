package database

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ardanlabs/koin/foundation/blockchain/signature"
)

// ErrInvalidTx is returned when a transaction is missing or has malformed fields.
var ErrInvalidTx = errors.New("transaction invalid")

// =============================================================================

// Tx is the transactional information between two parties. There is no
// balance accounting, the amount is recorded as provided.
type Tx struct {
	Sender   string  `json:"sender"`   // Identifier of the party sending the amount.
	Receiver string  `json:"receiver"` // Identifier of the party receiving the amount.
	Amount   float64 `json:"amount"`   // Value moved by this transaction.
}

// NewTx constructs a new transaction.
func NewTx(sender string, receiver string, amount float64) (Tx, error) {
	tx := Tx{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Validate checks the transaction fields are present and well formed.
func (tx Tx) Validate() error {
	if strings.TrimSpace(tx.Sender) == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidTx)
	}

	if strings.TrimSpace(tx.Receiver) == "" {
		return fmt.Errorf("%w: receiver is required", ErrInvalidTx)
	}

	// Both identities end up in the canonical form of a block.
	if !utf8.ValidString(tx.Sender) || !utf8.ValidString(tx.Receiver) {
		return fmt.Errorf("%w: sender and receiver must be valid utf-8", ErrInvalidTx)
	}

	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrInvalidTx)
	}

	return nil
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s->%s:%v", tx.Sender, tx.Receiver, tx.Amount)
}

// canonical returns the value hashed for this transaction.
func (tx Tx) canonical() signature.Object {
	return signature.Object{
		"sender":   tx.Sender,
		"receiver": tx.Receiver,
		"amount":   tx.Amount,
	}
}
