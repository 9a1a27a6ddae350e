// Package entitlement decides whether a gated analysis is permitted and
// applies the usage-increment, daily-reset, and plan-upgrade transitions.
// The engine behaves identically over either store backend.
package entitlement

import (
	"context"

	"veritas/internal/clock"
	"veritas/internal/logging"
	"veritas/internal/session"
	"veritas/internal/store"
	"veritas/internal/users"
)

// FreeDailyQuota is the number of gated analyses a free-plan user may run
// per calendar day.
const FreeDailyQuota = 3

// Engine is the entitlement decision and mutation core.
type Engine struct {
	store  store.UserRecordStore
	holder *session.Holder
	clock  clock.Clock
	log    logging.Logger
}

func New(st store.UserRecordStore, holder *session.Holder, clk clock.Clock, log logging.Logger) *Engine {
	return &Engine{store: st, holder: holder, clock: clk, log: log}
}

// CheckLimit reports whether the session may run another gated analysis
// today. Pro users are never limited. The check is pure: it mutates
// nothing and may be called freely without locking.
func (e *Engine) CheckLimit(sess *users.Session) bool {
	if sess == nil {
		return false
	}
	if sess.Plan == users.PlanPro {
		return true
	}
	return sess.EffectiveUsage(e.clock.Today()) < FreeDailyQuota
}

// RecordUsage applies one gated action to the authoritative record and
// returns the refreshed session projection. The increment is fused with
// the day rollover and is atomic per user: concurrent calls never lose
// updates. Callers are expected to have passed CheckLimit first, but the
// call is safe unconditionally; a Pro user's counter simply keeps
// counting past the free quota.
func (e *Engine) RecordUsage(ctx context.Context, userID string) (*users.Session, error) {
	rec, err := e.store.Mutate(ctx, userID, func(r *users.UserRecord) error {
		r.RecordUsage(e.clock.Today())
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug(ctx, "usage recorded", "user_id", userID, "daily_usage", rec.DailyUsage)

	sess := rec.Session()
	e.refreshHolder(sess)
	return sess, nil
}

// UpgradeToPro switches the user's plan to Pro. Idempotent: upgrading an
// already-Pro user succeeds and changes nothing. Usage counters are left
// untouched.
func (e *Engine) UpgradeToPro(ctx context.Context, userID string) (*users.Session, error) {
	rec, err := e.store.Mutate(ctx, userID, func(r *users.UserRecord) error {
		r.Plan = users.PlanPro
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info(ctx, "plan upgraded", "user_id", userID)

	sess := rec.Session()
	e.refreshHolder(sess)
	return sess, nil
}

// refreshHolder updates the cached session when the mutated user is the
// one currently logged in on this device.
func (e *Engine) refreshHolder(sess *users.Session) {
	if cur := e.holder.Get(); cur != nil && cur.UserID == sess.UserID {
		e.holder.Set(sess)
	}
}
