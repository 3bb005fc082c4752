package fees

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAccountValidation(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	_, err := svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Amount: 100})
	require.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Currency: "INR", Amount: -1})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Currency: "INR", Amount: 50_000})
	require.NoError(t, err)

	_, err = svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Currency: "INR", Amount: 50_000})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// Same student, different term: a new account.
	_, err = svc.OpenAccount(ctx, "s1", "CS-101", "2027-spring", Money{Currency: "INR", Amount: 50_000})
	require.NoError(t, err)
}

func TestRecordPaymentIdempotency(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	_, err := svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Currency: "INR", Amount: 50_000})
	require.NoError(t, err)

	first, err := svc.RecordPayment(ctx, "s1", "2026-autumn", Money{Currency: "INR", Amount: 20_000}, "ref-1", "gw-cb-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Sequence)

	// Gateway callback replay: same key returns the original payment and the
	// balance does not move again.
	replay, err := svc.RecordPayment(ctx, "s1", "2026-autumn", Money{Currency: "INR", Amount: 20_000}, "ref-1", "gw-cb-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, replay.ID)
	require.Equal(t, first.Sequence, replay.Sequence)

	acc, err := svc.GetAccount(ctx, "s1", "2026-autumn")
	require.NoError(t, err)
	require.Equal(t, int64(20_000), acc.Paid)
	require.Equal(t, int64(30_000), acc.Outstanding())
}

func TestRecordPaymentGuards(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	_, err := svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Currency: "INR", Amount: 10_000})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, "s1", "2026-autumn", Money{Currency: "INR", Amount: 0}, "", "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, "s1", "2026-autumn", Money{Currency: "USD", Amount: 100}, "", "")
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = svc.RecordPayment(ctx, "s1", "2026-autumn", Money{Currency: "INR", Amount: 10_001}, "", "")
	require.ErrorIs(t, err, ErrOverpayment)

	_, err = svc.RecordPayment(ctx, "ghost", "2026-autumn", Money{Currency: "INR", Amount: 100}, "", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPaymentsPagination(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	_, err := svc.OpenAccount(ctx, "s1", "CS-101", "2026-autumn", Money{Currency: "INR", Amount: 100_000})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.RecordPayment(ctx, "s1", "2026-autumn", Money{Currency: "INR", Amount: 1_000}, "", "")
		require.NoError(t, err)
	}

	page, last, err := svc.ListPayments(ctx, "s1", 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, uint64(3), last)

	rest, last, err := svc.ListPayments(ctx, "s1", 10, last)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, uint64(5), last)

	none, _, err := svc.ListPayments(ctx, "other", 10, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}
