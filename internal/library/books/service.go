package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"citadel-backend/internal/library/audit"
	"citadel-backend/internal/library/idgen"
)

// ===== Error model =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type copyIDSource interface {
	NextCopyIDs(ctx context.Context, n int) ([]string, error)
}

type recorder interface {
	Record(ctx context.Context, actorID int64, action, description, ip string)
}

// Actor は操作を行う職員
type Actor struct {
	UserID int64
	IP     string
}

// ===== Service本体 =====

type Service struct {
	store Store
	audit recorder
	ids   copyIDSource
	clock Clock
}

func NewService(db *sql.DB, rec recorder) *Service {
	return &Service{
		store: NewStore(db),
		audit: rec,
		ids:   idgen.New(db),
		clock: realClock{},
	}
}

const (
	maxTitleLen = 200
	minCopies   = 1
	maxCopies   = 100
	minPubYear  = 1900
)

// AddBook は書誌1件とそのコピー群を一括登録する。
// コピーINSERTに失敗した場合は書誌行を削除して補償する。
func (s *Service) AddBook(ctx context.Context, req AddBookRequest, actor Actor) (*AddBookResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrInvalid("Book title is required")
	}
	if len(title) > maxTitleLen {
		return nil, ErrInvalid("Title must be 200 characters or less")
	}
	if strings.TrimSpace(req.Author) == "" {
		return nil, ErrInvalid("Author name is required")
	}
	if strings.TrimSpace(req.Publisher) == "" {
		return nil, ErrInvalid("Publisher is required")
	}
	currentYear := s.clock.Now().Year()
	if req.PublicationYear < minPubYear || req.PublicationYear > currentYear {
		return nil, ErrInvalid(fmt.Sprintf("Publication year must be between %d and %d", minPubYear, currentYear))
	}
	if req.NumberOfCopies < minCopies || req.NumberOfCopies > maxCopies {
		return nil, ErrInvalid(fmt.Sprintf("Number of copies must be between %d and %d", minCopies, maxCopies))
	}

	var isbn sql.NullString
	if req.ISBN != nil && strings.TrimSpace(*req.ISBN) != "" {
		clean := cleanISBN(*req.ISBN)
		if len(clean) != 10 && len(clean) != 13 {
			return nil, ErrInvalid("ISBN must be 10 or 13 digits")
		}
		exists, err := s.store.ISBNExists(ctx, clean)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrConflict("A book with this ISBN already exists")
		}
		isbn = sql.NullString{String: clean, Valid: true}
	}

	var categoryID sql.NullInt64
	if req.CategoryID != nil {
		ok, err := s.store.CategoryExists(ctx, *req.CategoryID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalid("Invalid category selected")
		}
		categoryID = sql.NullInt64{Int64: *req.CategoryID, Valid: true}
	}

	var shelf sql.NullString
	if req.ShelfLocation != nil && strings.TrimSpace(*req.ShelfLocation) != "" {
		shelf = sql.NullString{String: strings.TrimSpace(*req.ShelfLocation), Valid: true}
	}

	// 1. 書誌INSERT
	b := &BookRow{
		Title:           title,
		Author:          strings.TrimSpace(req.Author),
		ISBN:            isbn,
		Publisher:       strings.TrimSpace(req.Publisher),
		PublicationYear: req.PublicationYear,
		CategoryID:      categoryID,
		TotalCopies:     req.NumberOfCopies,
		AvailableCopies: req.NumberOfCopies,
		ShelfLocation:   shelf,
	}
	if err := s.store.InsertBook(ctx, b); err != nil {
		return nil, ErrInternal("Failed to add book")
	}

	// 2. バッチ連番を確保してコピーIDを払い出し
	copyIDs, err := s.ids.NextCopyIDs(ctx, req.NumberOfCopies)
	if err != nil {
		s.compensateBook(ctx, b.ID)
		return nil, err
	}

	copies := make([]CopyRow, 0, req.NumberOfCopies)
	for i, id := range copyIDs {
		copies = append(copies, CopyRow{
			BookID:     b.ID,
			CopyNumber: i + 1,
			BookCopyID: id,
			Status:     copyStatusAvailable,
		})
	}

	// 3. コピー一括INSERT。失敗したら書誌行を削除して補償
	if err := s.store.InsertCopies(ctx, copies); err != nil {
		s.compensateBook(ctx, b.ID)
		return nil, ErrInternal("Failed to create book copies")
	}

	// 4. 監査ログ
	s.audit.Record(ctx, actor.UserID, audit.ActionAddBook,
		fmt.Sprintf("Added book: %s (%d copies)", title, req.NumberOfCopies), actor.IP)

	return &AddBookResponse{BookID: b.ID, Title: title, CopyIDs: copyIDs}, nil
}

func (s *Service) compensateBook(ctx context.Context, bookID int64) {
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		log.Printf("failed to compensate book %d: %v", bookID, err)
	}
}

// Search は書誌を検索し、コピー状態をまとめて引いてメモリ上で集計する
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	found, err := s.store.SearchBooks(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]int64, 0, len(found))
	for _, b := range found {
		ids = append(ids, b.ID)
	}
	statuses, err := s.store.ListCopyStatuses(ctx, ids)
	if err != nil {
		return nil, err
	}

	type counts struct{ total, available int }
	stats := make(map[int64]counts, len(found))
	for _, st := range statuses {
		c := stats[st.BookID]
		c.total++
		if st.Status == copyStatusAvailable {
			c.available++
		}
		stats[st.BookID] = c
	}

	results := make([]SearchResult, 0, len(found))
	for _, b := range found {
		c := stats[b.ID]
		if q.AvailableOnly && c.available == 0 {
			continue
		}
		results = append(results, SearchResult{
			Book:            toSummary(b),
			TotalCopies:     c.total,
			AvailableCopies: c.available,
		})
	}
	return results, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// ReconcileCopies は在庫キャッシュのドリフトを実数から復元する（保守用、ホットパス外）
func (s *Service) ReconcileCopies(ctx context.Context, actor Actor) (int64, error) {
	n, err := s.store.ReconcileCopyCounts(ctx)
	if err != nil {
		return 0, ErrInternal("Failed to reconcile copy counts")
	}
	s.audit.Record(ctx, actor.UserID, audit.ActionReconcile,
		fmt.Sprintf("Reconciled copy counters (%d books updated)", n), actor.IP)
	return n, nil
}

func cleanISBN(isbn string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(isbn)
}

func toSummary(b BookRow) BookSummary {
	out := BookSummary{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		PublicationYear: b.PublicationYear,
	}
	if b.ISBN.Valid {
		val := b.ISBN.String
		out.ISBN = &val
	}
	if b.CategoryID.Valid {
		val := b.CategoryID.Int64
		out.CategoryID = &val
	}
	if b.ShelfLocation.Valid {
		val := b.ShelfLocation.String
		out.ShelfLocation = &val
	}
	return out
}
