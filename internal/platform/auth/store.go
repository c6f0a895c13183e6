package auth

import (
	"context"
	"database/sql"
	"errors"

	mysql "github.com/go-sql-driver/mysql"
)

// User は users テーブルの1行（会員＝認証主体）を表す
type User struct {
	ID           int64
	MemberID     string
	FullName     string
	Email        string
	Phone        string
	PasswordHash string
	UserType     sql.NullString
	Role         string
	TotalFine    float64
	IsActive     bool
	IsBlocked    bool
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) UserStore {
	return &Store{db: db}
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
SELECT id, member_id, full_name, email, phone, password_hash, user_type, role, total_fine, is_active, is_blocked
FROM users
WHERE email = ?
LIMIT 1
`
	var u User
	err := s.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID,
		&u.MemberID,
		&u.FullName,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.UserType,
		&u.Role,
		&u.TotalFine,
		&u.IsActive,
		&u.IsBlocked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users
(member_id, full_name, email, phone, password_hash, user_type, role, total_fine, is_active, is_blocked, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		u.MemberID, u.FullName, u.Email, u.Phone, u.PasswordHash, u.UserType, u.Role,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 { // duplicate key
			return ErrAlreadyExists
		}
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.TotalFine = 0
	u.IsActive = true
	return nil
}
