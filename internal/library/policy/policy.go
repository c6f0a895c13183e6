// Package policy holds the borrowing rules: limits, loan periods and
// late-fine arithmetic. Pure functions only, no store access.
package policy

import (
	"math"
	"time"
)

const (
	UserTypeStudent = "Student"
	UserTypeFaculty = "Faculty"

	// 貸出上限と貸出期間（Faculty優遇）
	BorrowLimitFaculty = 5
	BorrowLimitDefault = 3
	LoanDaysFaculty    = 30
	LoanDaysDefault    = 14

	// 延滞金: 1日あたり5、累計500超で新規貸出停止（500ちょうどは許可）
	FineRatePerDay = 5
	FineCeiling    = 500
)

const (
	ReasonHighFines    = "High fines"
	ReasonInactive     = "Inactive account"
	ReasonBlocked      = "Blocked account"
	ReasonLimitReached = "Borrowing limit reached"
)

// Member は資格判定に必要なスナップショット。
type Member struct {
	UserType  string
	TotalFine float64
	IsActive  bool
	IsBlocked bool
}

type Decision struct {
	Eligible bool
	Reason   string
}

func BorrowLimit(userType string) int {
	if userType == UserTypeFaculty {
		return BorrowLimitFaculty
	}
	return BorrowLimitDefault
}

func LoanDays(userType string) int {
	if userType == UserTypeFaculty {
		return LoanDaysFaculty
	}
	return LoanDaysDefault
}

func DueDate(issue time.Time, userType string) time.Time {
	return issue.AddDate(0, 0, LoanDays(userType))
}

// CheckMember judges member-side eligibility. Exactly one reason is
// surfaced; precedence is fine ceiling > inactive > blocked > limit.
func CheckMember(m Member, issuedCount int) Decision {
	switch {
	case m.TotalFine > FineCeiling:
		return Decision{Reason: ReasonHighFines}
	case !m.IsActive:
		return Decision{Reason: ReasonInactive}
	case m.IsBlocked:
		return Decision{Reason: ReasonBlocked}
	case issuedCount >= BorrowLimit(m.UserType):
		return Decision{Reason: ReasonLimitReached}
	}
	return Decision{Eligible: true}
}

// LateFine computes days late and the fine for a return instant.
// Lateness is the calendar-day ceiling of elapsed wall-clock time past the
// due instant: one second late already counts as one day.
func LateFine(due, returned time.Time) (daysLate int, fine float64) {
	if !returned.After(due) {
		return 0, 0
	}
	daysLate = int(math.Ceil(returned.Sub(due).Hours() / 24))
	return daysLate, float64(daysLate * FineRatePerDay)
}
