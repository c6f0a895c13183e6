package lending

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Store は貸出・返却が触る5テーブルへのクエリ面。
// 各呼び出しは個別コミット（複文トランザクション保証なし）を前提とし、
// 部分失敗の補償はサービス層が行う。
type Store interface {
	GetMemberByMemberID(ctx context.Context, memberID string) (*MemberRow, error)
	GetMemberByID(ctx context.Context, id int64) (*MemberRow, error)
	CountIssuedByMember(ctx context.Context, userID int64) (int, error)
	GetCopyByCopyID(ctx context.Context, bookCopyID string) (*CopyRow, error)
	GetBookByID(ctx context.Context, id int64) (*BookRow, error)
	InsertTransaction(ctx context.Context, t *TransactionRow) error
	DeleteTransaction(ctx context.Context, id int64) error
	SetCopyStatus(ctx context.Context, copyID int64, from, to string) (bool, error)
	AdjustAvailableCopies(ctx context.Context, bookID int64, delta int) error
	GetActiveTransactionByCopy(ctx context.Context, copyID int64) (*TransactionRow, error)
	FinalizeReturn(ctx context.Context, txnID int64, returnDate time.Time, returnedTo int64, fine float64, status string) (bool, error)
	InsertFine(ctx context.Context, f *FineRow) error
	AddMemberFine(ctx context.Context, userID int64, amount float64) error
	ListActiveLoansByMember(ctx context.Context, userID int64) ([]LoanRow, error)
}

type sqlStore struct{ db *sql.DB }

func NewStore(db *sql.DB) Store { return &sqlStore{db: db} }

const dateLayout = "2006-01-02"

// ---- Lookups ----

func (s *sqlStore) GetMemberByMemberID(ctx context.Context, memberID string) (*MemberRow, error) {
	const q = `
	SELECT id, member_id, full_name, user_type, total_fine, is_active, is_blocked
	FROM users WHERE member_id = ? LIMIT 1`
	return s.scanMember(s.db.QueryRowContext(ctx, q, memberID))
}

func (s *sqlStore) GetMemberByID(ctx context.Context, id int64) (*MemberRow, error) {
	const q = `
	SELECT id, member_id, full_name, user_type, total_fine, is_active, is_blocked
	FROM users WHERE id = ? LIMIT 1`
	return s.scanMember(s.db.QueryRowContext(ctx, q, id))
}

func (s *sqlStore) scanMember(row *sql.Row) (*MemberRow, error) {
	var m MemberRow
	err := row.Scan(&m.ID, &m.MemberID, &m.FullName, &m.UserType, &m.TotalFine, &m.IsActive, &m.IsBlocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *sqlStore) CountIssuedByMember(ctx context.Context, userID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM transactions WHERE user_id = ? AND status = 'Issued'`
	var n int
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqlStore) GetCopyByCopyID(ctx context.Context, bookCopyID string) (*CopyRow, error) {
	const q = `
	SELECT id, book_copy_id, book_id, copy_number, status
	FROM book_copies WHERE book_copy_id = ? LIMIT 1`
	var c CopyRow
	err := s.db.QueryRowContext(ctx, q, bookCopyID).Scan(&c.ID, &c.BookCopyID, &c.BookID, &c.CopyNumber, &c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *sqlStore) GetBookByID(ctx context.Context, id int64) (*BookRow, error) {
	const q = `
	SELECT id, title, author, isbn, shelf_location, total_copies, available_copies
	FROM books WHERE id = ? LIMIT 1`
	var b BookRow
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.ShelfLocation, &b.TotalCopies, &b.AvailableCopies,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *sqlStore) GetActiveTransactionByCopy(ctx context.Context, copyID int64) (*TransactionRow, error) {
	const q = `
	SELECT id, transaction_id, user_id, book_copy_id, issue_date, due_date, return_date,
	       issued_by, returned_to, fine_amount, fine_paid, status
	FROM transactions WHERE book_copy_id = ? AND status = 'Issued' LIMIT 1`
	var t TransactionRow
	err := s.db.QueryRowContext(ctx, q, copyID).Scan(
		&t.ID, &t.TransactionID, &t.UserID, &t.BookCopyID, &t.IssueDate, &t.DueDate, &t.ReturnDate,
		&t.IssuedBy, &t.ReturnedTo, &t.FineAmount, &t.FinePaid, &t.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ---- Mutations ----

func (s *sqlStore) InsertTransaction(ctx context.Context, t *TransactionRow) error {
	const q = `
	INSERT INTO transactions
	(transaction_id, user_id, book_copy_id, issue_date, due_date, issued_by, fine_amount, fine_paid, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, 0, 0, 'Issued', CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		t.TransactionID, t.UserID, t.BookCopyID,
		t.IssueDate.Format(dateLayout), t.DueDate.Format(dateLayout), t.IssuedBy,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	return nil
}

func (s *sqlStore) DeleteTransaction(ctx context.Context, id int64) error {
	const q = `DELETE FROM transactions WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// SetCopyStatus は条件付き遷移。現在ステータスが from でなければ何もしない
// （affected=0 を返す）。check-then-act の競合をストア側で潰すため。
func (s *sqlStore) SetCopyStatus(ctx context.Context, copyID int64, from, to string) (bool, error) {
	const q = `UPDATE book_copies SET status = ? WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, to, copyID, from)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

// AdjustAvailableCopies は原子的な増減。0..total_copies にクランプする。
func (s *sqlStore) AdjustAvailableCopies(ctx context.Context, bookID int64, delta int) error {
	const q = `
	UPDATE books
	SET available_copies = GREATEST(LEAST(available_copies + ?, total_copies), 0)
	WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, delta, bookID)
	return err
}

func (s *sqlStore) FinalizeReturn(ctx context.Context, txnID int64, returnDate time.Time, returnedTo int64, fine float64, status string) (bool, error) {
	const q = `
	UPDATE transactions
	SET return_date = ?, returned_to = ?, fine_amount = ?, fine_paid = 0, status = ?
	WHERE id = ? AND status = 'Issued'`
	res, err := s.db.ExecContext(ctx, q, returnDate.Format(dateLayout), returnedTo, fine, status, txnID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

func (s *sqlStore) InsertFine(ctx context.Context, f *FineRow) error {
	const q = `
	INSERT INTO fines (transaction_id, user_id, amount, reason, paid, created_at)
	VALUES (?, ?, ?, ?, 0, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, f.TransactionID, f.UserID, f.Amount, f.Reason)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	f.ID = id
	return nil
}

func (s *sqlStore) AddMemberFine(ctx context.Context, userID int64, amount float64) error {
	const q = `UPDATE users SET total_fine = total_fine + ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, amount, userID)
	return err
}

// ---- Dashboard ----

func (s *sqlStore) ListActiveLoansByMember(ctx context.Context, userID int64) ([]LoanRow, error) {
	const q = `
	SELECT t.transaction_id, c.book_copy_id, b.title, b.author, t.issue_date, t.due_date, t.status
	FROM transactions t
	JOIN book_copies c ON c.id = t.book_copy_id
	JOIN books b ON b.id = c.book_id
	WHERE t.user_id = ? AND t.status = 'Issued'
	ORDER BY t.due_date ASC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoanRow
	for rows.Next() {
		var r LoanRow
		if err := rows.Scan(&r.TransactionID, &r.BookCopyID, &r.Title, &r.Author, &r.IssueDate, &r.DueDate, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
