// Package users defines the durable user record, its sanitized session
// projection, and the daily usage-counter transitions shared by every
// read and write path.
package users

import (
	"fmt"

	"veritas/internal/common"
)

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// ParsePlan validates a plan value read from a store. Unknown values are
// rejected at the adapter boundary rather than propagated inward.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanFree, PlanPro:
		return Plan(s), nil
	default:
		return "", fmt.Errorf("%w: unknown plan %q", common.ErrMalformedRecord, s)
	}
}

// UserRecord is the durable user profile.
//
// DailyUsage is meaningful only relative to LastUsageDate: whenever
// LastUsageDate differs from today, the counter is logically zero.
type UserRecord struct {
	// ID is an opaque unique identifier assigned at registration.
	ID string

	// Email is the login key, unique across records, case-sensitive as stored.
	Email string

	// Name is the display name set at registration.
	Name string

	// CredentialSecret is the stored password verifier (bcrypt hash).
	// It never leaves the store/authenticator boundary.
	CredentialSecret []byte

	// Plan starts as PlanFree and only ever transitions to PlanPro.
	Plan Plan

	// DailyUsage counts gated actions performed on LastUsageDate.
	DailyUsage int

	// LastUsageDate is the YYYY-MM-DD day DailyUsage pertains to,
	// in the reference timezone.
	LastUsageDate string

	// Version is a monotonic counter used for conditional updates.
	Version int64
}

// EffectiveUsage returns the usage count as of today, treating a counter
// from an earlier day as zero.
func (u *UserRecord) EffectiveUsage(today string) int {
	if u.LastUsageDate != today {
		return 0
	}
	return u.DailyUsage
}

// Rollover resets the counter when the record's usage day is not today.
// It reports whether the record was changed and needs persisting.
func (u *UserRecord) Rollover(today string) bool {
	if u.LastUsageDate == today {
		return false
	}
	u.DailyUsage = 0
	u.LastUsageDate = today
	return true
}

// RecordUsage applies one gated action to the counter, fusing the day
// rollover with the increment.
func (u *UserRecord) RecordUsage(today string) {
	if u.LastUsageDate != today {
		u.DailyUsage = 1
		u.LastUsageDate = today
		return
	}
	u.DailyUsage++
}

// Session returns the sanitized projection of the record. It deliberately
// carries no credential material.
func (u *UserRecord) Session() *Session {
	return &Session{
		UserID:        u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Plan:          u.Plan,
		DailyUsage:    u.DailyUsage,
		LastUsageDate: u.LastUsageDate,
	}
}

// Session is the ephemeral, client-visible projection of a UserRecord.
type Session struct {
	UserID        string
	Email         string
	Name          string
	Plan          Plan
	DailyUsage    int
	LastUsageDate string
}

// EffectiveUsage returns the session's usage count as of today.
func (s *Session) EffectiveUsage(today string) int {
	if s.LastUsageDate != today {
		return 0
	}
	return s.DailyUsage
}
