package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostel-allocation-backend/internal/model"
)

// Credit appends a credit entry to a student's wallet ledger. A repeat call
// with the same operation key returns the previously recorded entry without
// applying the amount again.
func (s *gormStore) Credit(ctx context.Context, studentID int64, amount int64, reason model.WalletReason, description, opKey string) (*model.WalletEntry, error) {
	return s.appendEntry(ctx, studentID, model.WalletCredit, amount, reason, description, opKey)
}

// Debit appends a debit entry, failing with ErrInsufficientBalance if the
// running balance would go negative. Idempotent per operation key.
func (s *gormStore) Debit(ctx context.Context, studentID int64, amount int64, reason model.WalletReason, description, opKey string) (*model.WalletEntry, error) {
	return s.appendEntry(ctx, studentID, model.WalletDebit, amount, reason, description, opKey)
}

func (s *gormStore) appendEntry(ctx context.Context, studentID int64, kind model.WalletEntryKind, amount int64, reason model.WalletReason, description, opKey string) (*model.WalletEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("wallet amount must be positive, got %d", amount)
	}
	if opKey == "" {
		return nil, fmt.Errorf("wallet operation key is required")
	}

	var entry model.WalletEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.WalletEntry
		err := tx.Where("operation_key = ?", opKey).First(&existing).Error
		if err == nil {
			entry = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up operation key %q: %w", opKey, err)
		}

		balance, err := latestBalance(tx, studentID)
		if err != nil {
			return err
		}

		switch kind {
		case model.WalletCredit:
			balance += amount
		case model.WalletDebit:
			if balance < amount {
				return ErrInsufficientBalance
			}
			balance -= amount
		}

		entry = model.WalletEntry{
			StudentID:    studentID,
			Kind:         kind,
			Amount:       amount,
			Reason:       reason,
			Description:  description,
			OperationKey: opKey,
			Balance:      balance,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append wallet entry for student %d: %w", studentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// WalletBalance returns the student's running balance; zero for a student
// with no ledger entries.
func (s *gormStore) WalletBalance(ctx context.Context, studentID int64) (int64, error) {
	return latestBalance(s.db.WithContext(ctx), studentID)
}

// WalletEntries returns the student's ledger, newest first.
func (s *gormStore) WalletEntries(ctx context.Context, studentID int64) ([]model.WalletEntry, error) {
	var entries []model.WalletEntry
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch wallet entries for student %d: %w", studentID, err)
	}
	return entries, nil
}

// EnqueuePendingCredit parks a credit that failed to apply so the sweeper
// can re-drive it. Enqueueing the same operation key twice is a no-op.
func (s *gormStore) EnqueuePendingCredit(ctx context.Context, pending *model.PendingCredit) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "operation_key"}}, DoNothing: true}).
		Create(pending).Error
	if err != nil {
		return fmt.Errorf("failed to enqueue pending credit %q: %w", pending.OperationKey, err)
	}
	return nil
}

// ListPendingCredits returns unapplied credits, oldest first.
func (s *gormStore) ListPendingCredits(ctx context.Context, limit int) ([]model.PendingCredit, error) {
	var pending []model.PendingCredit
	if err := s.db.WithContext(ctx).Order("id ASC").Limit(limit).Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending credits: %w", err)
	}
	return pending, nil
}

// ResolvePendingCredit drops a pending credit once its wallet entry landed.
func (s *gormStore) ResolvePendingCredit(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&model.PendingCredit{}, id).Error; err != nil {
		return fmt.Errorf("failed to resolve pending credit %d: %w", id, err)
	}
	return nil
}

func latestBalance(tx *gorm.DB, studentID int64) (int64, error) {
	var last model.WalletEntry
	err := tx.Where("student_id = ?", studentID).Order("id DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for student %d: %w", studentID, err)
	}
	return last.Balance, nil
}
