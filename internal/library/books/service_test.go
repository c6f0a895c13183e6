package books

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ===== テスト用フェイク =====

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeCopyIDs struct{ fail bool }

func (f fakeCopyIDs) NextCopyIDs(_ context.Context, n int) ([]string, error) {
	if f.fail {
		return nil, errors.New("idgen failed")
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("BK-2025-0007-%02d", i))
	}
	return out, nil
}

type fakeRecorder struct{ entries []string }

func (r *fakeRecorder) Record(_ context.Context, _ int64, action, description, _ string) {
	r.entries = append(r.entries, action+": "+description)
}

type fakeStore struct {
	categories   []Category
	isbns        map[string]bool
	books        []*BookRow
	copies       []CopyRow
	deletedBooks []int64

	searchResult []BookRow
	statuses     []CopyStatusRow
	lastQuery    SearchQuery

	failInsertCopies bool
	reconciled       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{isbns: map[string]bool{}}
}

func (f *fakeStore) CategoryExists(_ context.Context, id int64) (bool, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListCategories(_ context.Context) ([]Category, error) {
	return f.categories, nil
}

func (f *fakeStore) ISBNExists(_ context.Context, isbn string) (bool, error) {
	return f.isbns[isbn], nil
}

func (f *fakeStore) InsertBook(_ context.Context, b *BookRow) error {
	b.ID = int64(len(f.books) + 1)
	f.books = append(f.books, b)
	return nil
}

func (f *fakeStore) DeleteBook(_ context.Context, id int64) error {
	f.deletedBooks = append(f.deletedBooks, id)
	return nil
}

func (f *fakeStore) InsertCopies(_ context.Context, copies []CopyRow) error {
	if f.failInsertCopies {
		return errors.New("insert failed")
	}
	f.copies = append(f.copies, copies...)
	return nil
}

func (f *fakeStore) SearchBooks(_ context.Context, q SearchQuery) ([]BookRow, error) {
	f.lastQuery = q
	return f.searchResult, nil
}

func (f *fakeStore) ListCopyStatuses(_ context.Context, _ []int64) ([]CopyStatusRow, error) {
	return f.statuses, nil
}

func (f *fakeStore) ReconcileCopyCounts(_ context.Context) (int64, error) {
	return f.reconciled, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore) (*Service, *fakeRecorder) {
	rec := &fakeRecorder{}
	return &Service{
		store: store,
		audit: rec,
		ids:   fakeCopyIDs{},
		clock: fixedClock{t: testNow},
	}, rec
}

func validRequest() AddBookRequest {
	return AddBookRequest{
		Title:           "The Go Programming Language",
		Author:          "Alan Donovan",
		Publisher:       "Addison-Wesley",
		PublicationYear: 2015,
		NumberOfCopies:  3,
	}
}

// ===== AddBook =====

func TestAddBookHappyPath(t *testing.T) {
	f := newFakeStore()
	svc, rec := newTestService(f)

	res, err := svc.AddBook(context.Background(), validRequest(), Actor{UserID: 9})
	require.NoError(t, err)

	require.Equal(t, int64(1), res.BookID)
	require.Equal(t, []string{"BK-2025-0007-01", "BK-2025-0007-02", "BK-2025-0007-03"}, res.CopyIDs)

	require.Len(t, f.books, 1)
	require.Equal(t, 3, f.books[0].TotalCopies)
	require.Equal(t, 3, f.books[0].AvailableCopies)

	// コピーは連番・全冊Available・同一書誌に紐づく
	require.Len(t, f.copies, 3)
	for i, c := range f.copies {
		require.Equal(t, int64(1), c.BookID)
		require.Equal(t, i+1, c.CopyNumber)
		require.Equal(t, copyStatusAvailable, c.Status)
	}

	require.Len(t, rec.entries, 1)
	require.Contains(t, rec.entries[0], "ADD_BOOK")
}

func TestAddBookValidation(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name   string
		mutate func(*AddBookRequest)
	}{
		{"empty title", func(r *AddBookRequest) { r.Title = "   " }},
		{"title too long", func(r *AddBookRequest) { r.Title = string(long) }},
		{"empty author", func(r *AddBookRequest) { r.Author = "" }},
		{"empty publisher", func(r *AddBookRequest) { r.Publisher = " " }},
		{"year too old", func(r *AddBookRequest) { r.PublicationYear = 1899 }},
		{"year in future", func(r *AddBookRequest) { r.PublicationYear = 2026 }},
		{"zero copies", func(r *AddBookRequest) { r.NumberOfCopies = 0 }},
		{"too many copies", func(r *AddBookRequest) { r.NumberOfCopies = 101 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeStore()
			svc, _ := newTestService(f)
			req := validRequest()
			tc.mutate(&req)

			_, err := svc.AddBook(context.Background(), req, Actor{})
			requireCode(t, err, CodeInvalidArgument)
			require.Empty(t, f.books)
		})
	}
}

func TestAddBookBoundaryYears(t *testing.T) {
	f := newFakeStore()
	svc, _ := newTestService(f)

	req := validRequest()
	req.PublicationYear = 1900
	_, err := svc.AddBook(context.Background(), req, Actor{})
	require.NoError(t, err)

	req = validRequest()
	req.PublicationYear = 2025 // clock year
	_, err = svc.AddBook(context.Background(), req, Actor{})
	require.NoError(t, err)
}

func TestAddBookISBNNormalizedAndDeduplicated(t *testing.T) {
	f := newFakeStore()
	svc, _ := newTestService(f)

	isbn := "978-0-13-419044-0"
	req := validRequest()
	req.ISBN = &isbn
	_, err := svc.AddBook(context.Background(), req, Actor{})
	require.NoError(t, err)
	require.Equal(t, "9780134190440", f.books[0].ISBN.String)

	f.isbns["9780134190440"] = true
	_, err = svc.AddBook(context.Background(), req, Actor{})
	requireCode(t, err, CodeConflict)

	bad := "12345"
	req.ISBN = &bad
	_, err = svc.AddBook(context.Background(), req, Actor{})
	requireCode(t, err, CodeInvalidArgument)
}

func TestAddBookRejectsUnknownCategory(t *testing.T) {
	f := newFakeStore()
	f.categories = []Category{{ID: 1, Name: "Fiction"}}
	svc, _ := newTestService(f)

	bad := int64(999)
	req := validRequest()
	req.CategoryID = &bad
	_, err := svc.AddBook(context.Background(), req, Actor{})
	requireCode(t, err, CodeInvalidArgument)

	good := int64(1)
	req.CategoryID = &good
	res, err := svc.AddBook(context.Background(), req, Actor{})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.books[0].CategoryID.Int64)
	require.NotNil(t, res)
}

func TestAddBookCompensatesWhenCopiesFail(t *testing.T) {
	f := newFakeStore()
	f.failInsertCopies = true
	svc, rec := newTestService(f)

	_, err := svc.AddBook(context.Background(), validRequest(), Actor{})
	requireCode(t, err, CodeInternal)

	// 書誌行が補償削除され、監査ログも出ない
	require.Equal(t, []int64{1}, f.deletedBooks)
	require.Empty(t, rec.entries)
}

func TestAddBookCompensatesWhenIDGenFails(t *testing.T) {
	f := newFakeStore()
	svc, _ := newTestService(f)
	svc.ids = fakeCopyIDs{fail: true}

	_, err := svc.AddBook(context.Background(), validRequest(), Actor{})
	require.Error(t, err)
	require.Equal(t, []int64{1}, f.deletedBooks)
	require.Empty(t, f.copies)
}

// ===== Search =====

func searchFixture() *fakeStore {
	f := newFakeStore()
	f.searchResult = []BookRow{
		{ID: 1, Title: "A", Author: "X", Publisher: "P", PublicationYear: 2001},
		{ID: 2, Title: "B", Author: "Y", Publisher: "P", PublicationYear: 2002},
	}
	f.statuses = []CopyStatusRow{
		{BookID: 1, Status: "Available"},
		{BookID: 1, Status: "Issued"},
		{BookID: 2, Status: "Issued"},
		{BookID: 2, Status: "Damaged"},
	}
	return f
}

func TestSearchAggregatesCopyCounts(t *testing.T) {
	f := searchFixture()
	svc, _ := newTestService(f)

	res, err := svc.Search(context.Background(), SearchQuery{Q: "a"})
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.Equal(t, 2, res[0].TotalCopies)
	require.Equal(t, 1, res[0].AvailableCopies)
	require.Equal(t, 2, res[1].TotalCopies)
	require.Equal(t, 0, res[1].AvailableCopies)
}

func TestSearchAvailableOnlyFiltersOut(t *testing.T) {
	f := searchFixture()
	svc, _ := newTestService(f)

	res, err := svc.Search(context.Background(), SearchQuery{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, int64(1), res[0].Book.ID)
}

func TestSearchNoMatchesReturnsEmptySlice(t *testing.T) {
	f := newFakeStore()
	svc, _ := newTestService(f)

	res, err := svc.Search(context.Background(), SearchQuery{Q: "nothing"})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Empty(t, res)
}

// ===== Reconcile =====

func TestReconcileCopies(t *testing.T) {
	f := newFakeStore()
	f.reconciled = 4
	svc, rec := newTestService(f)

	n, err := svc.ReconcileCopies(context.Background(), Actor{UserID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Len(t, rec.entries, 1)
	require.Contains(t, rec.entries[0], "RECONCILE_COPIES")
}

// ===== helpers =====

func TestCleanISBN(t *testing.T) {
	require.Equal(t, "9780134190440", cleanISBN("978-0-13-419044-0"))
	require.Equal(t, "0134190440", cleanISBN("0 13 419044 0"))
}

func requireCode(t *testing.T, err error, want Code) {
	t.Helper()
	require.Error(t, err)
	var api *APIError
	require.ErrorAs(t, err, &api)
	require.Equal(t, want, api.Code)
}
