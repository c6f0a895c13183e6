package books

import (
	"database/sql"
	"time"
)

// BookRow は books テーブルの1行（書誌＋在庫キャッシュ）
type BookRow struct {
	ID              int64
	Title           string
	Author          string
	ISBN            sql.NullString
	Publisher       string
	PublicationYear int
	CategoryID      sql.NullInt64
	TotalCopies     int
	AvailableCopies int
	ShelfLocation   sql.NullString
	CreatedAt       time.Time
}

// CopyRow は book_copies テーブルの1行を表す
type CopyRow struct {
	ID         int64
	BookID     int64
	CopyNumber int
	BookCopyID string
	Status     string
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CopyStatusRow は検索の集計用（書誌ID + ステータスのみ）
type CopyStatusRow struct {
	BookID int64
	Status string
}

const copyStatusAvailable = "Available"
