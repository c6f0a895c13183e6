package books

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

type Store interface {
	CategoryExists(ctx context.Context, id int64) (bool, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ISBNExists(ctx context.Context, isbn string) (bool, error)
	InsertBook(ctx context.Context, b *BookRow) error
	DeleteBook(ctx context.Context, id int64) error
	InsertCopies(ctx context.Context, copies []CopyRow) error
	SearchBooks(ctx context.Context, q SearchQuery) ([]BookRow, error)
	ListCopyStatuses(ctx context.Context, bookIDs []int64) ([]CopyStatusRow, error)
	ReconcileCopyCounts(ctx context.Context) (int64, error)
}

type sqlStore struct{ db *sql.DB }

func NewStore(db *sql.DB) Store { return &sqlStore{db: db} }

func (s *sqlStore) CategoryExists(ctx context.Context, id int64) (bool, error) {
	const q = `SELECT id FROM categories WHERE id = ? LIMIT 1`
	var got int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqlStore) ListCategories(ctx context.Context) ([]Category, error) {
	const q = `SELECT id, name FROM categories ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) ISBNExists(ctx context.Context, isbn string) (bool, error) {
	const q = `SELECT id FROM books WHERE isbn = ? LIMIT 1`
	var got int64
	err := s.db.QueryRowContext(ctx, q, isbn).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqlStore) InsertBook(ctx context.Context, b *BookRow) error {
	const q = `
	INSERT INTO books
	(title, author, isbn, publisher, publication_year, category_id, total_copies, available_copies, shelf_location, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		b.Title, b.Author, b.ISBN, b.Publisher, b.PublicationYear, b.CategoryID,
		b.TotalCopies, b.AvailableCopies, b.ShelfLocation,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	b.ID = id
	return nil
}

func (s *sqlStore) DeleteBook(ctx context.Context, id int64) error {
	const q = `DELETE FROM books WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

func (s *sqlStore) InsertCopies(ctx context.Context, copies []CopyRow) error {
	if len(copies) == 0 {
		return nil
	}
	sb := strings.Builder{}
	sb.WriteString(`INSERT INTO book_copies (book_id, copy_number, book_copy_id, status) VALUES `)
	args := make([]any, 0, len(copies)*4)
	for i, c := range copies {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, c.BookID, c.CopyNumber, c.BookCopyID, c.Status)
	}
	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *sqlStore) SearchBooks(ctx context.Context, q SearchQuery) ([]BookRow, error) {
	sb := strings.Builder{}
	sb.WriteString(`
	SELECT id, title, author, isbn, publisher, publication_year, category_id,
	       total_copies, available_copies, shelf_location, created_at
	FROM books
	WHERE 1=1
	`)
	args := []any{}
	if q.Q != "" {
		sb.WriteString(` AND LOWER(title) LIKE ?`)
		args = append(args, "%"+strings.ToLower(q.Q)+"%")
	}
	if q.Author != "" {
		sb.WriteString(` AND LOWER(author) LIKE ?`)
		args = append(args, "%"+strings.ToLower(q.Author)+"%")
	}
	if q.ISBN != "" {
		sb.WriteString(` AND isbn = ?`)
		args = append(args, q.ISBN)
	}
	if q.CategoryID != nil {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, *q.CategoryID)
	}

	// ランキングなし（ストアのデフォルト順＝主キー順）
	sb.WriteString(` ORDER BY id ASC`)
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookRow
	for rows.Next() {
		var b BookRow
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Publisher, &b.PublicationYear,
			&b.CategoryID, &b.TotalCopies, &b.AvailableCopies, &b.ShelfLocation, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListCopyStatuses はヒットした書誌集合のコピー状態を1回のクエリでまとめて引く
func (s *sqlStore) ListCopyStatuses(ctx context.Context, bookIDs []int64) ([]CopyStatusRow, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}
	sb := strings.Builder{}
	sb.WriteString(`SELECT book_id, status FROM book_copies WHERE book_id IN (`)
	args := make([]any, 0, len(bookIDs))
	for i, id := range bookIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, id)
	}
	sb.WriteString(`)`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CopyStatusRow
	for rows.Next() {
		var r CopyStatusRow
		if err := rows.Scan(&r.BookID, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReconcileCopyCounts は在庫キャッシュ列をコピー実数から再計算する保守用オペレーション
func (s *sqlStore) ReconcileCopyCounts(ctx context.Context) (int64, error) {
	const q = `
	UPDATE books b
	LEFT JOIN (
		SELECT book_id,
		       COUNT(*) AS total_cnt,
		       COALESCE(SUM(status = 'Available'), 0) AS avail_cnt
		FROM book_copies
		WHERE status <> 'Removed'
		GROUP BY book_id
	) c ON c.book_id = b.id
	SET b.total_copies = COALESCE(c.total_cnt, 0),
	    b.available_copies = COALESCE(c.avail_cnt, 0)`
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
