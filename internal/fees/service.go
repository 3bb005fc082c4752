package fees

import (
	"context"
	"sync"
	"time"

	"collegia.org/internal/ids"
)

// Service defines fee-ledger operations.
type Service interface {
	OpenAccount(ctx context.Context, studentID, unit, term string, charge Money) (Account, error)
	GetAccount(ctx context.Context, studentID, term string) (Account, error)
	RecordPayment(ctx context.Context, studentID, term string, amt Money, reference, idemKey string) (Payment, error)
	ListPayments(ctx context.Context, studentID string, limit int, afterSeq uint64) ([]Payment, uint64, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*Account // studentID/term -> account
	seq      uint64
	payments []Payment
	idem     map[string]Payment // idemKey -> payment
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates a fresh fee ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[string]*Account),
		idem:     make(map[string]Payment),
	}
}

func acctKey(studentID, term string) string { return studentID + "/" + term }

func (s *InMemory) OpenAccount(ctx context.Context, studentID, unit, term string, charge Money) (Account, error) {
	if charge.Currency == "" {
		return Account{}, ErrInvalidCurrency
	}
	if charge.Amount < 0 {
		return Account{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := acctKey(studentID, term)
	if _, exists := s.accounts[key]; exists {
		return Account{}, ErrAlreadyExists
	}
	acc := &Account{
		StudentID: studentID,
		Unit:      unit,
		Term:      term,
		Currency:  charge.Currency,
		Charged:   charge.Amount,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[key] = acc
	return *acc, nil
}

func (s *InMemory) GetAccount(ctx context.Context, studentID, term string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[acctKey(studentID, term)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

func (s *InMemory) RecordPayment(ctx context.Context, studentID, term string, amt Money, reference, idemKey string) (Payment, error) {
	if !amt.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	if amt.Currency == "" {
		return Payment{}, ErrInvalidCurrency
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotency: replaying a gateway callback returns the original payment.
	if idemKey != "" {
		if p, ok := s.idem[idemKey]; ok {
			return p, nil
		}
	}

	acc, ok := s.accounts[acctKey(studentID, term)]
	if !ok {
		return Payment{}, ErrNotFound
	}
	if acc.Currency != amt.Currency {
		return Payment{}, ErrCurrencyMismatch
	}
	if acc.Outstanding() < amt.Amount {
		return Payment{}, ErrOverpayment
	}

	acc.Paid += amt.Amount
	s.seq++
	p := Payment{
		ID:             ids.New(),
		StudentID:      studentID,
		Term:           term,
		Currency:       amt.Currency,
		Amount:         amt.Amount,
		Reference:      reference,
		IdempotencyKey: idemKey,
		Sequence:       s.seq,
		CreatedAt:      time.Now().UTC(),
	}
	s.payments = append(s.payments, p)
	if idemKey != "" {
		s.idem[idemKey] = p
	}
	return p, nil
}

func (s *InMemory) ListPayments(ctx context.Context, studentID string, limit int, afterSeq uint64) ([]Payment, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Payment
	var last uint64
	for _, p := range s.payments {
		if p.Sequence <= afterSeq {
			continue
		}
		if studentID != "" && p.StudentID != studentID {
			continue
		}
		res = append(res, p)
		last = p.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}
