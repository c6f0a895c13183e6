package books

// 蔵書追加リクエスト（1タイトル＋複数コピーを一括登録）
type AddBookRequest struct {
	Title           string  `json:"title" binding:"required"`
	Author          string  `json:"author" binding:"required"`
	ISBN            *string `json:"isbn,omitempty"`
	Publisher       string  `json:"publisher" binding:"required"`
	PublicationYear int     `json:"publication_year" binding:"required"`
	CategoryID      *int64  `json:"category_id,omitempty"`
	NumberOfCopies  int     `json:"number_of_copies" binding:"required"`
	ShelfLocation   *string `json:"shelf_location,omitempty"`
}

type AddBookResponse struct {
	BookID  int64    `json:"book_id"`
	Title   string   `json:"title"`
	CopyIDs []string `json:"copy_ids"`
}

// 検索条件
type SearchQuery struct {
	Q             string // タイトル部分一致（大文字小文字無視）
	Author        string // 著者部分一致
	ISBN          string // 完全一致
	CategoryID    *int64
	AvailableOnly bool
	Limit         int
	Offset        int
}

type BookSummary struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	ISBN            *string `json:"isbn,omitempty"`
	Publisher       string  `json:"publisher"`
	PublicationYear int     `json:"publication_year"`
	CategoryID      *int64  `json:"category_id,omitempty"`
	ShelfLocation   *string `json:"shelf_location,omitempty"`
}

// SearchResult は1タイトル分の検索結果。
// 在庫数は books のキャッシュ列ではなく book_copies から都度集計する。
type SearchResult struct {
	Book            BookSummary `json:"book"`
	TotalCopies     int         `json:"total_copies"`
	AvailableCopies int         `json:"available_copies"`
}
