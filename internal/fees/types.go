package fees

import (
	"errors"
	"time"
)

// Money is represented in minor units (e.g. paise). No floats.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsZero() bool     { return m.Amount == 0 }

// Account tracks a student's fee position for one academic term.
type Account struct {
	StudentID string    `json:"student_id"`
	Unit      string    `json:"unit,omitempty"`
	Term      string    `json:"term"`
	Currency  string    `json:"currency"`
	Charged   int64     `json:"charged"` // minor units
	Paid      int64     `json:"paid"`    // minor units
	CreatedAt time.Time `json:"created_at"`
}

// Outstanding returns the unpaid balance.
func (a Account) Outstanding() int64 { return a.Charged - a.Paid }

// Payment records one fee payment against a student account.
type Payment struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	Term           string    `json:"term"`
	Currency       string    `json:"currency"`
	Amount         int64     `json:"amount"` // minor units
	Reference      string    `json:"reference,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Sequence       uint64    `json:"sequence"` // monotonic sequence number
	CreatedAt      time.Time `json:"created_at"`
}

var (
	ErrNotFound        = errors.New("fees: not found")
	ErrInvalidAmount   = errors.New("fees: invalid amount (must be > 0)")
	ErrInvalidCurrency = errors.New("fees: invalid currency")
	ErrCurrencyMismatch = errors.New("fees: currency mismatch")
	ErrOverpayment     = errors.New("fees: payment exceeds outstanding balance")
	ErrAlreadyExists   = errors.New("fees: account already exists")
)
