package models

import "time"

// PassStatus is the lifecycle state of a pass.
type PassStatus string

const (
	StatusWaiting   PassStatus = "waiting"
	StatusActive    PassStatus = "active"
	StatusEnded     PassStatus = "ended"
	StatusCancelled PassStatus = "cancelled"
	StatusExpired   PassStatus = "expired"
)

// transitions is the closed set of allowed status changes. Terminal passes are
// not transitioned again; their slot is cleared by the cleanup sweeper.
var transitions = map[PassStatus][]PassStatus{
	StatusWaiting: {StatusActive, StatusCancelled},
	StatusActive:  {StatusEnded, StatusExpired},
}

// CanTransition reports whether a pass may move from one status to another.
func CanTransition(from, to PassStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s PassStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Pass is a single hall pass. A user holds at most one at a time; it lives
// embedded in the user record and is removed only by the cleanup sweeper.
type Pass struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"studentID"`
	StudentGrade *string    `json:"studentGrade,omitempty"`
	Status       PassStatus `json:"status"`
	FromTeacher  string     `json:"fromTeacher"`
	Destination  string     `json:"destination"`
	Purpose      string     `json:"purpose,omitempty"`
	AutoPass     bool       `json:"autoPass"`
	Start        *time.Time `json:"start"`
	End          *time.Time `json:"end"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
}

// Inactive reports whether the pass is done and eligible for cleanup.
func (p *Pass) Inactive() bool {
	switch p.Status {
	case StatusExpired, StatusCancelled:
		return true
	case StatusEnded:
		return p.End != nil
	}
	return false
}

// ReferenceTime is the timestamp the cleanup grace period counts from.
func (p *Pass) ReferenceTime() *time.Time {
	if p.End != nil {
		return p.End
	}
	if p.CancelledAt != nil {
		return p.CancelledAt
	}
	return p.Start
}

// Clone returns a deep copy of the pass.
func (p *Pass) Clone() *Pass {
	if p == nil {
		return nil
	}
	cp := *p
	cp.StudentGrade = cloneString(p.StudentGrade)
	cp.Start = cloneTime(p.Start)
	cp.End = cloneTime(p.End)
	cp.CancelledAt = cloneTime(p.CancelledAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
