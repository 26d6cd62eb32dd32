package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a stored entity does not exist.
var ErrNotFound = errors.New("not found")

// AttackEvent represents one attack episode. It is active while EndTime is nil.
type AttackEvent struct {
	ID                int64      `json:"id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	AttackType        string     `json:"attack_type"`
	Severity          int        `json:"severity"` // 1-10
	PacketCount       int64      `json:"packet_count"`
	MitigationApplied bool       `json:"mitigation_applied"`
	MitigationAction  string     `json:"mitigation_action"`
}

// Active reports whether the event has not been closed yet.
func (e AttackEvent) Active() bool {
	return e.EndTime == nil
}

// AttackEventUpdate lists the fields to change on an event. Nil fields are left alone.
type AttackEventUpdate struct {
	Severity          *int
	PacketCount       *int64
	MitigationApplied *bool
	MitigationAction  *string
	EndTime           *time.Time
}

// Apply writes the non-nil fields of u onto e.
func (u AttackEventUpdate) Apply(e *AttackEvent) {
	if u.Severity != nil {
		e.Severity = *u.Severity
	}
	if u.PacketCount != nil {
		e.PacketCount = *u.PacketCount
	}
	if u.MitigationApplied != nil {
		e.MitigationApplied = *u.MitigationApplied
	}
	if u.MitigationAction != nil {
		e.MitigationAction = *u.MitigationAction
	}
	if u.EndTime != nil {
		t := *u.EndTime
		e.EndTime = &t
	}
}
