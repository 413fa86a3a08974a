package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel-allocation-backend/internal/model"
)

func TestWalletLedger(t *testing.T) {
	gdb := newTestDB(t)
	s := NewGormStore(gdb)
	ctx := context.Background()

	const studentID = int64(7)

	t.Run("balance starts at zero", func(t *testing.T) {
		balance, err := s.WalletBalance(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("credit and debit keep a running balance", func(t *testing.T) {
		entry, err := s.Credit(ctx, studentID, 100, model.ReasonRefund, "hold refund", "op-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), entry.Balance)

		entry, err = s.Debit(ctx, studentID, 30, model.ReasonMessFee, "mess fee", "op-2")
		require.NoError(t, err)
		assert.Equal(t, int64(70), entry.Balance)

		balance, err := s.WalletBalance(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), balance)
	})

	t.Run("a debit past the balance is rejected", func(t *testing.T) {
		_, err := s.Debit(ctx, studentID, 100, model.ReasonHostelFee, "hostel fee", "op-3")
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		balance, err := s.WalletBalance(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), balance)
	})

	t.Run("replaying an operation key applies nothing", func(t *testing.T) {
		entry, err := s.Credit(ctx, studentID, 100, model.ReasonRefund, "hold refund", "op-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), entry.Balance, "the original entry comes back unchanged")

		balance, err := s.WalletBalance(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), balance)

		entries, err := s.WalletEntries(ctx, studentID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("entries come back newest first", func(t *testing.T) {
		entries, err := s.WalletEntries(ctx, studentID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "op-2", entries[0].OperationKey)
		assert.Equal(t, "op-1", entries[1].OperationKey)
	})

	t.Run("invalid amounts and missing keys are rejected", func(t *testing.T) {
		_, err := s.Credit(ctx, studentID, 0, model.ReasonAdjustment, "", "op-4")
		assert.Error(t, err)

		_, err = s.Credit(ctx, studentID, -5, model.ReasonAdjustment, "", "op-5")
		assert.Error(t, err)

		_, err = s.Credit(ctx, studentID, 10, model.ReasonAdjustment, "", "")
		assert.Error(t, err)
	})
}
