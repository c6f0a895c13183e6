package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"citadel-backend/internal/library/audit"
	"citadel-backend/internal/library/idgen"
	"citadel-backend/internal/library/policy"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type txnIDSource interface {
	NextTransactionID(ctx context.Context) (string, error)
}

type recorder interface {
	Record(ctx context.Context, actorID int64, action, description, ip string)
}

// Actor は操作を行う職員（JWTから復元）
type Actor struct {
	UserID int64
	IP     string
}

// ===== Service本体 =====

// Service は貸出・返却のライフサイクルを編成する。
// transactions 行が唯一の正であり、蔵書ステータス以降の後続ステップは
// 補償（貸出時のみ）またはログのみのベストエフォートで扱う。
type Service struct {
	store Store
	audit recorder
	ids   txnIDSource
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

// 貸出登録
func (s *Service) Issue(ctx context.Context, req IssueRequest, actor Actor) (*IssueReceipt, error) {
	if req.MemberID == "" || req.BookCopyID == "" {
		return nil, ErrInvalid("Member ID and Book Copy ID are required")
	}

	// 1. 会員確認
	m, err := s.store.GetMemberByMemberID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound()
	}

	// 2. 貸出資格判定（現在の貸出中件数が必要）
	issuedCount, err := s.store.CountIssuedByMember(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	d := policy.CheckMember(policyMember(m), issuedCount)
	if !d.Eligible {
		return nil, ErrPolicyViolation(d.Reason)
	}

	// 3. 蔵書確認
	c, err := s.store.GetCopyByCopyID(ctx, req.BookCopyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCopyNotFound()
	}
	if c.Status != CopyStatusAvailable {
		return nil, ErrNotAvailable(fmt.Sprintf("Book copy is %s. Cannot issue.", strings.ToLower(c.Status)))
	}

	// 4. 書誌情報（表示用＋在庫キャッシュ）
	b, err := s.store.GetBookByID(ctx, c.BookID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrIntegrity("Book details not found")
	}

	// 5. 返却期限
	userType := m.UserType.String
	issueDate := s.clock.Now()
	dueDate := policy.DueDate(issueDate, userType)

	// 6. トランザクションID確保 → INSERT（これが最初の変更ステップ）
	txnID, err := s.ids.NextTransactionID(ctx)
	if err != nil {
		return nil, err
	}
	t := &TransactionRow{
		TransactionID: txnID,
		UserID:        m.ID,
		BookCopyID:    c.ID,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		IssuedBy:      actor.UserID,
		Status:        TxnStatusIssued,
	}
	if err := s.store.InsertTransaction(ctx, t); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			// 連番の同時採番衝突はUNIQUE制約がエラー化する（リトライ可能）
			return nil, ErrConflict("transaction id collision, please retry")
		}
		return nil, ErrTxnFailed("Failed to create transaction")
	}

	// 7. 蔵書を Issued へ条件付き遷移。失敗時はトランザクションを削除して補償
	moved, err := s.store.SetCopyStatus(ctx, c.ID, CopyStatusAvailable, CopyStatusIssued)
	if err != nil || !moved {
		if delErr := s.store.DeleteTransaction(ctx, t.ID); delErr != nil {
			log.Printf("failed to compensate transaction %s: %v", txnID, delErr)
		}
		if err != nil {
			return nil, ErrTxnFailed("Failed to update book status")
		}
		// 同時貸出に競り負けた
		return nil, ErrNotAvailable("Book copy is issued. Cannot issue.")
	}

	// 8. 在庫キャッシュ減算（失敗してもロールバックしない）
	if err := s.store.AdjustAvailableCopies(ctx, b.ID, -1); err != nil {
		log.Printf("failed to decrement available_copies for book %d: %v", b.ID, err)
	}

	// 9. 監査ログ
	s.audit.Record(ctx, actor.UserID, audit.ActionIssueBook,
		fmt.Sprintf("Issued %s (%s) to %s (%s)", b.Title, c.BookCopyID, m.FullName, m.MemberID), actor.IP)

	// 10. レシート
	return &IssueReceipt{
		TransactionID: txnID,
		BookTitle:     b.Title,
		BookAuthor:    b.Author,
		MemberName:    m.FullName,
		MemberID:      m.MemberID,
		IssueDate:     issueDate.Format(dateLayout),
		DueDate:       dueDate.Format(dateLayout),
		BorrowPeriod:  fmt.Sprintf("%d days", policy.LoanDays(userType)),
	}, nil
}

// 返却登録
func (s *Service) Return(ctx context.Context, req ReturnRequest, actor Actor) (*ReturnReceipt, error) {
	if req.BookCopyID == "" {
		return nil, ErrInvalid("Book Copy ID is required")
	}

	// 1. 蔵書確認
	c, err := s.store.GetCopyByCopyID(ctx, req.BookCopyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCopyNotFound()
	}

	// 2. 貸出中トランザクション
	t, err := s.store.GetActiveTransactionByCopy(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoActiveLoan()
	}

	// 3. 会員・書誌の参照整合
	m, err := s.store.GetMemberByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBookByID(ctx, c.BookID)
	if err != nil {
		return nil, err
	}
	if m == nil || b == nil {
		return nil, ErrIntegrity("Failed to fetch transaction details")
	}

	// 4. 延滞判定
	returnDate := s.clock.Now()
	daysLate, fine := policy.LateFine(t.DueDate, returnDate)
	isLate := daysLate > 0
	status := TxnStatusReturned
	if isLate {
		status = TxnStatusOverdue
	}

	// 5. トランザクション確定（最初の変更ステップ、補償不要）。
	//    status='Issued' の行だけ更新されるので、二重返却はここで止まる
	updated, err := s.store.FinalizeReturn(ctx, t.ID, returnDate, actor.UserID, fine, status)
	if err != nil {
		return nil, ErrUpdateFailed("Failed to update transaction")
	}
	if !updated {
		return nil, ErrNoActiveLoan()
	}

	// 6. 蔵書を Available に戻す（ログのみ）
	if moved, err := s.store.SetCopyStatus(ctx, c.ID, CopyStatusIssued, CopyStatusAvailable); err != nil {
		log.Printf("failed to update copy %s status: %v", c.BookCopyID, err)
	} else if !moved {
		log.Printf("copy %s was not in Issued status on return", c.BookCopyID)
	}

	// 7. 在庫キャッシュ加算（total_copies でキャップ、ログのみ）
	if err := s.store.AdjustAvailableCopies(ctx, b.ID, 1); err != nil {
		log.Printf("failed to increment available_copies for book %d: %v", b.ID, err)
	}

	// 8. 延滞金の台帳追記と会員への加算（双方ベストエフォート）
	if fine > 0 {
		f := &FineRow{TransactionID: t.ID, UserID: t.UserID, Amount: fine, Reason: "Late Return"}
		if err := s.store.InsertFine(ctx, f); err != nil {
			log.Printf("failed to insert fine for transaction %s: %v", t.TransactionID, err)
		}
		if err := s.store.AddMemberFine(ctx, t.UserID, fine); err != nil {
			log.Printf("failed to add fine to member %d: %v", t.UserID, err)
		}
	}

	// 9. 監査ログ
	desc := fmt.Sprintf("Returned %s (%s) from %s", b.Title, c.BookCopyID, m.FullName)
	if isLate {
		desc += fmt.Sprintf(" - %d days late, fine: %.0f", daysLate, fine)
	}
	s.audit.Record(ctx, actor.UserID, audit.ActionReturnBook, desc, actor.IP)

	// 10. レシート
	return &ReturnReceipt{
		TransactionID: t.TransactionID,
		BookTitle:     b.Title,
		BookAuthor:    b.Author,
		MemberName:    m.FullName,
		MemberID:      m.MemberID,
		IssueDate:     t.IssueDate.Format(dateLayout),
		DueDate:       t.DueDate.Format(dateLayout),
		ReturnDate:    returnDate.Format(dateLayout),
		IsLate:        isLate,
		DaysLate:      daysLate,
		FineAmount:    fine,
		Status:        status,
	}, nil
}

// VerifyMember: 貸出前の会員プローブ（読み取りのみ）
func (s *Service) VerifyMember(ctx context.Context, memberID string) (*MemberVerification, error) {
	m, err := s.store.GetMemberByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound()
	}

	issuedCount, err := s.store.CountIssuedByMember(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	d := policy.CheckMember(policyMember(m), issuedCount)
	v := &MemberVerification{
		MemberID:          m.MemberID,
		FullName:          m.FullName,
		UserType:          m.UserType.String,
		TotalFine:         m.TotalFine,
		IsActive:          m.IsActive,
		IsBlocked:         m.IsBlocked,
		CurrentBorrowings: issuedCount,
		BorrowLimit:       policy.BorrowLimit(m.UserType.String),
		CanBorrow:         d.Eligible,
	}
	if !d.Eligible {
		reason := d.Reason
		v.Reason = &reason
	}
	return v, nil
}

// VerifyCopy: 貸出前の蔵書プローブ
func (s *Service) VerifyCopy(ctx context.Context, bookCopyID string) (*CopyVerification, error) {
	c, err := s.store.GetCopyByCopyID(ctx, bookCopyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCopyNotFound()
	}

	b, err := s.store.GetBookByID(ctx, c.BookID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrIntegrity("Book details not found")
	}

	v := &CopyVerification{
		BookCopyID: c.BookCopyID,
		Status:     c.Status,
		Title:      b.Title,
		Author:     b.Author,
		CanIssue:   c.Status == CopyStatusAvailable,
	}
	if b.ISBN.Valid {
		val := b.ISBN.String
		v.ISBN = &val
	}
	if b.ShelfLocation.Valid {
		val := b.ShelfLocation.String
		v.ShelfLocation = &val
	}
	return v, nil
}

// PreviewReturn: 返却前の確認（想定延滞金を出すだけで何も変更しない）
func (s *Service) PreviewReturn(ctx context.Context, bookCopyID string) (*ReturnPreview, error) {
	c, err := s.store.GetCopyByCopyID(ctx, bookCopyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCopyNotFound()
	}

	t, err := s.store.GetActiveTransactionByCopy(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoActiveLoan()
	}

	m, err := s.store.GetMemberByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBookByID(ctx, c.BookID)
	if err != nil {
		return nil, err
	}
	if m == nil || b == nil {
		return nil, ErrIntegrity("Failed to fetch details")
	}

	daysLate, fine := policy.LateFine(t.DueDate, s.clock.Now())
	return &ReturnPreview{
		TransactionID: t.TransactionID,
		BookTitle:     b.Title,
		BookAuthor:    b.Author,
		MemberName:    m.FullName,
		MemberID:      m.MemberID,
		UserType:      m.UserType.String,
		IssueDate:     t.IssueDate.Format(dateLayout),
		DueDate:       t.DueDate.Format(dateLayout),
		IsLate:        daysLate > 0,
		DaysLate:      daysLate,
		PotentialFine: fine,
	}, nil
}

// MemberDashboard: 会員本人の貸出状況サマリ
func (s *Service) MemberDashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	m, err := s.store.GetMemberByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound()
	}
	if !m.IsActive {
		return nil, ErrPolicyViolation("Account is inactive")
	}

	loans, err := s.store.ListActiveLoansByMember(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	limit := policy.BorrowLimit(m.UserType.String)
	dash := &Dashboard{
		MemberID:  m.MemberID,
		FullName:  m.FullName,
		UserType:  m.UserType.String,
		TotalFine: m.TotalFine,
	}
	dueSoon := 0
	for _, l := range loans {
		daysUntilDue := int(l.DueDate.Sub(now).Hours() / 24)
		overdue := now.After(l.DueDate)
		if !overdue && daysUntilDue <= 7 {
			dueSoon++
		}
		dash.BorrowedBooks = append(dash.BorrowedBooks, BorrowedBook{
			TransactionID: l.TransactionID,
			BookTitle:     l.Title,
			BookAuthor:    l.Author,
			BookCopyID:    l.BookCopyID,
			IssueDate:     l.IssueDate.Format(dateLayout),
			DueDate:       l.DueDate.Format(dateLayout),
			Status:        l.Status,
			DaysUntilDue:  daysUntilDue,
			IsOverdue:     overdue,
		})
	}
	dash.Stats = DashboardStats{
		BooksBorrowed:  len(loans),
		DueInNext7Days: dueSoon,
		TotalFines:     m.TotalFine,
		BorrowLimit:    limit,
		AvailableSlots: max(limit-len(loans), 0),
	}
	return dash, nil
}

func policyMember(m *MemberRow) policy.Member {
	return policy.Member{
		UserType:  m.UserType.String,
		TotalFine: m.TotalFine,
		IsActive:  m.IsActive,
		IsBlocked: m.IsBlocked,
	}
}
