package lending

// 貸出リクエスト
type IssueRequest struct {
	MemberID   string `json:"member_id" binding:"required"`
	BookCopyID string `json:"book_copy_id" binding:"required"`
}

// 返却リクエスト
type ReturnRequest struct {
	BookCopyID string `json:"book_copy_id" binding:"required"`
}

// 貸出レシート
type IssueReceipt struct {
	TransactionID string `json:"transaction_id"`
	BookTitle     string `json:"book_title"`
	BookAuthor    string `json:"book_author"`
	MemberName    string `json:"member_name"`
	MemberID      string `json:"member_id"`
	IssueDate     string `json:"issue_date"`
	DueDate       string `json:"due_date"`
	BorrowPeriod  string `json:"borrow_period"`
}

// 返却レシート
type ReturnReceipt struct {
	TransactionID string  `json:"transaction_id"`
	BookTitle     string  `json:"book_title"`
	BookAuthor    string  `json:"book_author"`
	MemberName    string  `json:"member_name"`
	MemberID      string  `json:"member_id"`
	IssueDate     string  `json:"issue_date"`
	DueDate       string  `json:"due_date"`
	ReturnDate    string  `json:"return_date"`
	IsLate        bool    `json:"is_late"`
	DaysLate      int     `json:"days_late"`
	FineAmount    float64 `json:"fine_amount"`
	Status        string  `json:"status"`
}

// 貸出前の会員確認（UIの事前プローブ用）
type MemberVerification struct {
	MemberID          string  `json:"member_id"`
	FullName          string  `json:"full_name"`
	UserType          string  `json:"user_type"`
	TotalFine         float64 `json:"total_fine"`
	IsActive          bool    `json:"is_active"`
	IsBlocked         bool    `json:"is_blocked"`
	CurrentBorrowings int     `json:"current_borrowings"`
	BorrowLimit       int     `json:"borrow_limit"`
	CanBorrow         bool    `json:"can_borrow"`
	Reason            *string `json:"reason,omitempty"`
}

// 貸出前の蔵書確認
type CopyVerification struct {
	BookCopyID    string  `json:"book_copy_id"`
	Status        string  `json:"status"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          *string `json:"isbn,omitempty"`
	ShelfLocation *string `json:"shelf_location,omitempty"`
	CanIssue      bool    `json:"can_issue"`
}

// 返却前の確認（想定延滞金つき）
type ReturnPreview struct {
	TransactionID string  `json:"transaction_id"`
	BookTitle     string  `json:"book_title"`
	BookAuthor    string  `json:"book_author"`
	MemberName    string  `json:"member_name"`
	MemberID      string  `json:"member_id"`
	UserType      string  `json:"user_type"`
	IssueDate     string  `json:"issue_date"`
	DueDate       string  `json:"due_date"`
	IsLate        bool    `json:"is_late"`
	DaysLate      int     `json:"days_late"`
	PotentialFine float64 `json:"potential_fine"`
}

// 会員ダッシュボード
type BorrowedBook struct {
	TransactionID string `json:"transaction_id"`
	BookTitle     string `json:"book_title"`
	BookAuthor    string `json:"book_author"`
	BookCopyID    string `json:"book_copy_id"`
	IssueDate     string `json:"issue_date"`
	DueDate       string `json:"due_date"`
	Status        string `json:"status"`
	DaysUntilDue  int    `json:"days_until_due"`
	IsOverdue     bool   `json:"is_overdue"`
}

type DashboardStats struct {
	BooksBorrowed  int     `json:"books_borrowed"`
	DueInNext7Days int     `json:"due_in_next_7_days"`
	TotalFines     float64 `json:"total_fines"`
	BorrowLimit    int     `json:"borrow_limit"`
	AvailableSlots int     `json:"available_slots"`
}

type Dashboard struct {
	Stats         DashboardStats `json:"stats"`
	BorrowedBooks []BorrowedBook `json:"borrowed_books"`
	MemberID      string         `json:"member_id"`
	FullName      string         `json:"full_name"`
	UserType      string         `json:"user_type"`
	TotalFine     float64        `json:"total_fine"`
}
