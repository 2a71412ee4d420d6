package model

import (
	"time"
)

type AccountServiceState string

const (
	AccountServiceStateCreation AccountServiceState = "creation" // enrolled, onboarding answers collected
	AccountServiceStatePayment  AccountServiceState = "payment"  // awaiting first confirmed payment
	AccountServiceStateActive   AccountServiceState = "active"   // validity window open
	AccountServiceStateExpired  AccountServiceState = "expired"  // validity window lapsed
)

// AccountService is a purchased instance of a service by an account: the
// subscription record. The validity window is nil until the first payment is
// confirmed; DatetimeFrom and DatetimeTo are always set together.
type AccountService struct {
	ID           int64
	AccountID    int64
	ServiceID    int64
	State        AccountServiceState
	Questions    string // onboarding questionnaire snapshot taken at enrollment
	Answers      string
	DatetimeFrom *time.Time
	DatetimeTo   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExtensionPeriodDays is how much access a single confirmed payment buys.
const ExtensionPeriodDays = 31

// NormalizeDay strips the time-of-day component, leaving midnight of the same
// date in t's location. Window boundaries derived from payments always pass
// through here so that access expires on a day boundary.
func NormalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Extend moves the validity window forward after a confirmed payment.
// An already-active subscription gets ExtensionPeriodDays appended to its
// current end; anything else is activated with a fresh window starting now.
func (s *AccountService) Extend(now time.Time) {
	if s.State == AccountServiceStateActive && s.DatetimeTo != nil {
		to := NormalizeDay(s.DatetimeTo.AddDate(0, 0, ExtensionPeriodDays))
		s.DatetimeTo = &to
		return
	}
	from := now
	to := NormalizeDay(now.AddDate(0, 0, ExtensionPeriodDays))
	s.DatetimeFrom = &from
	s.DatetimeTo = &to
	s.State = AccountServiceStateActive
}
