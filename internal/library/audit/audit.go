// Package audit appends human-readable records of every mutating action.
// Writes are best-effort: a failed append is logged and never fails the
// operation that produced it.
package audit

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
)

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type Recorder struct {
	db *sql.DB
	id IDGen
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, id: ulidGen{}}
}

// 監査アクション種別
const (
	ActionIssueBook  = "ISSUE_BOOK"
	ActionReturnBook = "RETURN_BOOK"
	ActionAddBook    = "ADD_BOOK"
	ActionSignup     = "SIGNUP"
	ActionReconcile  = "RECONCILE_COPIES"
)

// Record appends one audit row. actorID 0 means no authenticated actor.
func (r *Recorder) Record(ctx context.Context, actorID int64, action, description, ip string) {
	auditULID, err := r.id.New()
	if err != nil {
		log.Printf("failed to generate audit ulid: %v", err)
		return
	}

	var userID any
	if actorID > 0 {
		userID = actorID
	}
	if ip == "" {
		ip = "unknown"
	}

	const q = `
	INSERT INTO audit_logs (audit_ulid, user_id, action, description, ip_address, created_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.ExecContext(ctx, q, auditULID, userID, action, description, ip); err != nil {
		log.Printf("failed to append audit log (%s): %v", action, err)
	}
}
