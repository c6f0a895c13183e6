package idgen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"citadel-backend/internal/platform/db"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Generator は年スコープの連番ID（MEM / BK / TXN）を払い出す。
//
// 連番は「挿入順で最新の1行」の末尾番号 +1 で決める（数値MAXではない）。
// 同時書き込み下で一意性は保証されないため、識別子カラムのUNIQUE制約で
// 重複INSERTをエラー化する前提。
type Generator struct {
	db    db.DBTX
	clock Clock
}

func New(conn db.DBTX) *Generator {
	return &Generator{db: conn, clock: realClock{}}
}

const (
	memberSeqWidth = 4
	copySeqWidth   = 4
	copyNumWidth   = 2
	txnSeqWidth    = 6
)

var (
	memberSeqRe = regexp.MustCompile(`^MEM-\d+-(\d+)$`)
	copySeqRe   = regexp.MustCompile(`^BK-\d+-(\d+)-\d+$`)
	txnSeqRe    = regexp.MustCompile(`^TXN-\d+-(\d+)$`)
)

// ===== 整形 =====

func FormatMemberID(year, seq int) string {
	return fmt.Sprintf("MEM-%d-%0*d", year, memberSeqWidth, seq)
}

// FormatCopyID: batch は同時追加分で共通、copyNum は 1 始まり。
func FormatCopyID(year, batch, copyNum int) string {
	return fmt.Sprintf("BK-%d-%0*d-%0*d", year, copySeqWidth, batch, copyNumWidth, copyNum)
}

func FormatTransactionID(year, seq int) string {
	return fmt.Sprintf("TXN-%d-%0*d", year, txnSeqWidth, seq)
}

// nextSeq は直近IDの末尾連番 +1 を返す。パース不能なら 1 から振り直し。
func nextSeq(latest string, re *regexp.Regexp) int {
	m := re.FindStringSubmatch(latest)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n + 1
}

// ===== 払い出し =====

func (g *Generator) NextMemberID(ctx context.Context) (string, error) {
	year := g.clock.Now().Year()
	seq, err := g.latestSeq(ctx,
		`SELECT member_id FROM users WHERE member_id LIKE ? ORDER BY id DESC LIMIT 1`,
		fmt.Sprintf("MEM-%d-%%", year), memberSeqRe)
	if err != nil {
		return "", err
	}
	return FormatMemberID(year, seq), nil
}

func (g *Generator) NextTransactionID(ctx context.Context) (string, error) {
	year := g.clock.Now().Year()
	seq, err := g.latestSeq(ctx,
		`SELECT transaction_id FROM transactions WHERE transaction_id LIKE ? ORDER BY id DESC LIMIT 1`,
		fmt.Sprintf("TXN-%d-%%", year), txnSeqRe)
	if err != nil {
		return "", err
	}
	return FormatTransactionID(year, seq), nil
}

// NextCopyIDs はバッチ連番を1つ確保し、当該バッチの n 冊分のIDを返す。
func (g *Generator) NextCopyIDs(ctx context.Context, n int) ([]string, error) {
	year := g.clock.Now().Year()
	batch, err := g.latestSeq(ctx,
		`SELECT book_copy_id FROM book_copies WHERE book_copy_id LIKE ? ORDER BY id DESC LIMIT 1`,
		fmt.Sprintf("BK-%d-%%", year), copySeqRe)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, FormatCopyID(year, batch, i))
	}
	return ids, nil
}

func (g *Generator) latestSeq(ctx context.Context, query, pattern string, re *regexp.Regexp) (int, error) {
	var latest string
	err := g.db.QueryRowContext(ctx, query, pattern).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return nextSeq(latest, re), nil
}
