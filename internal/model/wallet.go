package model

import "time"

// WalletEntryKind is the direction of a ledger entry.
type WalletEntryKind string

const (
	WalletCredit WalletEntryKind = "credit"
	WalletDebit  WalletEntryKind = "debit"
)

// WalletReason categorizes why a ledger entry was written.
type WalletReason string

const (
	ReasonRoomDowngrade WalletReason = "room_downgrade"
	ReasonRefund        WalletReason = "refund"
	ReasonHostelFee     WalletReason = "hostel_fee"
	ReasonMessFee       WalletReason = "mess_fee"
	ReasonAdjustment    WalletReason = "adjustment"
)

// PendingCredit is a refund credit that could not be written when its
// triggering seat release happened. The sweeper re-drives it until the
// wallet entry lands; OperationKey keeps replays idempotent.
type PendingCredit struct {
	ID           int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID    int64        `gorm:"not null;index" json:"student_id"`
	Amount       int64        `gorm:"not null" json:"amount"`
	Reason       WalletReason `gorm:"size:32;not null" json:"reason"`
	Description  string       `gorm:"size:256" json:"description"`
	OperationKey string       `gorm:"size:64;not null;uniqueIndex" json:"operation_key"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

// WalletEntry is one append-only row in a student's credit ledger. Amount is
// always positive; Kind carries the sign. Balance is the running balance
// after this entry was applied. OperationKey makes retried writes idempotent.
type WalletEntry struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID    int64           `gorm:"not null;index" json:"student_id"`
	Kind         WalletEntryKind `gorm:"size:8;not null" json:"kind"`
	Amount       int64           `gorm:"not null" json:"amount"`
	Reason       WalletReason    `gorm:"size:32;not null" json:"reason"`
	Description  string          `gorm:"size:256" json:"description"`
	OperationKey string          `gorm:"size:64;not null;uniqueIndex" json:"operation_key"`
	Balance      int64           `gorm:"not null" json:"balance"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}
