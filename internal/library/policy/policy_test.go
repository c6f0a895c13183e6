package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckMemberPrecedence(t *testing.T) {
	// 延滞金超過とブロックが同時に成立: 理由は延滞金が優先
	d := CheckMember(Member{UserType: UserTypeStudent, TotalFine: 600, IsActive: true, IsBlocked: true}, 0)
	require.False(t, d.Eligible)
	require.Equal(t, ReasonHighFines, d.Reason)

	d = CheckMember(Member{UserType: UserTypeStudent, IsActive: false, IsBlocked: true}, 0)
	require.Equal(t, ReasonInactive, d.Reason)

	d = CheckMember(Member{UserType: UserTypeStudent, IsActive: true, IsBlocked: true}, 0)
	require.Equal(t, ReasonBlocked, d.Reason)
}

func TestCheckMemberFineCeilingIsStrict(t *testing.T) {
	// 500ちょうどはまだ借りられる
	d := CheckMember(Member{UserType: UserTypeStudent, TotalFine: 500, IsActive: true}, 0)
	require.True(t, d.Eligible)

	d = CheckMember(Member{UserType: UserTypeStudent, TotalFine: 500.01, IsActive: true}, 0)
	require.False(t, d.Eligible)
	require.Equal(t, ReasonHighFines, d.Reason)
}

func TestCheckMemberBorrowLimits(t *testing.T) {
	student := Member{UserType: UserTypeStudent, IsActive: true}
	faculty := Member{UserType: UserTypeFaculty, IsActive: true}

	require.True(t, CheckMember(student, 2).Eligible)
	require.Equal(t, ReasonLimitReached, CheckMember(student, 3).Reason)

	require.True(t, CheckMember(faculty, 4).Eligible)
	require.Equal(t, ReasonLimitReached, CheckMember(faculty, 5).Reason)

	// 未知のタイプはStudent扱い
	other := Member{UserType: "Staff", IsActive: true}
	require.Equal(t, ReasonLimitReached, CheckMember(other, 3).Reason)
}

func TestLoanPeriods(t *testing.T) {
	require.Equal(t, 14, LoanDays(UserTypeStudent))
	require.Equal(t, 30, LoanDays(UserTypeFaculty))

	issue := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), DueDate(issue, UserTypeStudent))
	require.Equal(t, time.Date(2025, 3, 31, 10, 30, 0, 0, time.UTC), DueDate(issue, UserTypeFaculty))
}

func TestLateFine(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	// 期日ちょうどは延滞なし
	days, fine := LateFine(due, due)
	require.Equal(t, 0, days)
	require.Equal(t, 0.0, fine)

	// 1秒でも過ぎれば1日分
	days, fine = LateFine(due, due.Add(time.Second))
	require.Equal(t, 1, days)
	require.Equal(t, 5.0, fine)

	// まる3日後
	days, fine = LateFine(due, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 3, days)
	require.Equal(t, 15.0, fine)

	// 3日と1秒は切り上げで4日
	days, fine = LateFine(due, time.Date(2025, 1, 13, 0, 0, 1, 0, time.UTC))
	require.Equal(t, 4, days)
	require.Equal(t, 20.0, fine)

	// 期日前
	days, fine = LateFine(due, due.Add(-time.Hour))
	require.Equal(t, 0, days)
	require.Equal(t, 0.0, fine)
}
