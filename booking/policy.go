/*
policy.go - Availability policy: may a reservation be placed on a date?

PURPOSE:
  A pure function over snapshots handed to it by the stores. No clock, no
  I/O: "today" is an input, so every decision is reproducible in tests.

DECISION ORDER (first match wins, and its reason is reported):
  1. ALREADY_RESERVED - the date has at least one reservation
  2. ADMIN_BLOCKED    - an operator blocked the date
  3. LEAD_TIME        - target <= today + LeadDays (past, today, tomorrow)
  4. WEEKEND          - target falls on a closed weekday (Sat/Sun)
  5. bookable

  Hard facts come before policy choices: an existing reservation cannot be
  relaxed, lead time and weekend closure can.

EXAMPLE:
  d := DefaultPolicy().Evaluate(AvailabilityInput{
      Target:   NewDate(2025, time.March, 10),
      Today:    NewDate(2025, time.March, 1),
      Blocked:  blocked,
      Reserved: reserved,
  })
  if !d.Bookable {
      log.Println(d.Reason.Message())
  }

SEE ALSO:
  - service.go: feeds the engine from the stores
*/
package booking

import "time"

// Reason names the rule that blocked a date. Empty when bookable.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonAlreadyReserved Reason = "ALREADY_RESERVED"
	ReasonAdminBlocked    Reason = "ADMIN_BLOCKED"
	ReasonLeadTime        Reason = "LEAD_TIME"
	ReasonWeekend         Reason = "WEEKEND"
)

// Message is the text shown to people picking a date.
func (r Reason) Message() string {
	switch r {
	case ReasonAlreadyReserved:
		return "既に予約があります"
	case ReasonAdminBlocked:
		return "予約不可日（管理者設定）"
	case ReasonLeadTime:
		return "過去・当日・翌日は予約できません"
	case ReasonWeekend:
		return "土日は予約できません"
	default:
		return ""
	}
}

// Decision is the outcome for one date.
type Decision struct {
	Bookable bool   `json:"bookable"`
	Reason   Reason `json:"reason,omitempty"`
}

// AvailabilityInput is everything the engine looks at.
type AvailabilityInput struct {
	Target   Date
	Today    Date
	Blocked  DateSet // dates an operator blocked
	Reserved DateSet // dates with at least one reservation
}

// Policy holds the tunable parts of the rules.
type Policy struct {
	// LeadDays: dates up to and including today+LeadDays are rejected.
	LeadDays int

	// ClosedWeekdays are never bookable.
	ClosedWeekdays []time.Weekday
}

// DefaultPolicy: no same-day or next-day bookings, closed on weekends.
func DefaultPolicy() Policy {
	return Policy{
		LeadDays:       1,
		ClosedWeekdays: []time.Weekday{time.Saturday, time.Sunday},
	}
}

// Evaluate applies the rules in order and reports the first that matches.
func (p Policy) Evaluate(in AvailabilityInput) Decision {
	switch {
	case in.Reserved.Contains(in.Target):
		return Decision{Reason: ReasonAlreadyReserved}
	case in.Blocked.Contains(in.Target):
		return Decision{Reason: ReasonAdminBlocked}
	case in.Target.BeforeOrEqual(in.Today.AddDays(p.LeadDays)):
		return Decision{Reason: ReasonLeadTime}
	case p.closed(in.Target.Weekday()):
		return Decision{Reason: ReasonWeekend}
	}
	return Decision{Bookable: true}
}

func (p Policy) closed(wd time.Weekday) bool {
	for _, c := range p.ClosedWeekdays {
		if c == wd {
			return true
		}
	}
	return false
}

// DayStatus is one cell of a calendar view.
type DayStatus struct {
	Date Date
	Decision
}

// Calendar evaluates every day in [from, to]. in.Target is ignored.
func (p Policy) Calendar(in AvailabilityInput, from, to Date) []DayStatus {
	if to.Before(from) {
		return nil
	}
	out := make([]DayStatus, 0, DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		in.Target = d
		out = append(out, DayStatus{Date: d, Decision: p.Evaluate(in)})
	}
	return out
}
