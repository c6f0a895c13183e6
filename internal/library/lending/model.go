package lending

import (
	"database/sql"
	"time"
)

// 蔵書1冊のステータス
const (
	CopyStatusAvailable = "Available"
	CopyStatusIssued    = "Issued"
	CopyStatusRemoved   = "Removed"
	CopyStatusDamaged   = "Damaged"
)

// 貸出トランザクションのステータス
const (
	TxnStatusIssued   = "Issued"
	TxnStatusReturned = "Returned"
	TxnStatusOverdue  = "Overdue"
)

// MemberRow は users テーブルの貸出判定に使う部分
type MemberRow struct {
	ID        int64
	MemberID  string
	FullName  string
	UserType  sql.NullString
	TotalFine float64
	IsActive  bool
	IsBlocked bool
}

// CopyRow は book_copies テーブルの1行を表す
type CopyRow struct {
	ID         int64
	BookCopyID string
	BookID     int64
	CopyNumber int
	Status     string
}

// BookRow は books テーブルの貸出・返却で参照する部分
type BookRow struct {
	ID              int64
	Title           string
	Author          string
	ISBN            sql.NullString
	ShelfLocation   sql.NullString
	TotalCopies     int
	AvailableCopies int
}

// TransactionRow は transactions テーブルの1行を表す
type TransactionRow struct {
	ID            int64
	TransactionID string
	UserID        int64
	BookCopyID    int64
	IssueDate     time.Time
	DueDate       time.Time
	ReturnDate    sql.NullTime
	IssuedBy      int64
	ReturnedTo    sql.NullInt64
	FineAmount    float64
	FinePaid      bool
	Status        string
}

// FineRow は fines 台帳の1行（延滞時のみ追記）
type FineRow struct {
	ID            int64
	TransactionID int64
	UserID        int64
	Amount        float64
	Reason        string
}

// LoanRow は会員ダッシュボード用の貸出中1件（books/book_copies をJOIN済み）
type LoanRow struct {
	TransactionID string
	BookCopyID    string
	Title         string
	Author        string
	IssueDate     time.Time
	DueDate       time.Time
	Status        string
}
