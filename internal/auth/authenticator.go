// Package auth implements the credential authenticator: registration,
// login, logout, and restoring the current session across restarts.
// Passwords are verified against a bcrypt hash stored with the user
// record; the hash never leaves this package.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"veritas/internal/clock"
	"veritas/internal/common"
	"veritas/internal/logging"
	"veritas/internal/session"
	"veritas/internal/store"
	"veritas/internal/users"
)

// Authenticator verifies credentials against the configured store and
// owns the session lifecycle (holder cache plus durable token slot).
type Authenticator struct {
	store         store.UserRecordStore
	slot          *session.Slot
	holder        *session.Holder
	clock         clock.Clock
	secret        []byte
	tokenValidity time.Duration
	log           logging.Logger
}

func New(st store.UserRecordStore, slot *session.Slot, holder *session.Holder,
	clk clock.Clock, secret []byte, tokenValidity time.Duration, log logging.Logger) *Authenticator {
	return &Authenticator{
		store:         st,
		slot:          slot,
		holder:        holder,
		clock:         clk,
		secret:        secret,
		tokenValidity: tokenValidity,
		log:           log,
	}
}

// Register creates a new free-plan user and logs them in. The record is
// durably persisted before the session is returned.
func (a *Authenticator) Register(ctx context.Context, email, password, name string) (*users.Session, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", common.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", common.ErrValidation)
	}

	if _, err := a.store.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	secret, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	rec := &users.UserRecord{
		ID:               uuid.NewString(),
		Email:            email,
		Name:             name,
		CredentialSecret: secret,
		Plan:             users.PlanFree,
		DailyUsage:       0,
		LastUsageDate:    a.clock.Today(),
		Version:          1,
	}

	if err := a.store.Insert(ctx, rec); err != nil {
		// A concurrent registration can win the unique-email race.
		return nil, err
	}

	a.log.Info(ctx, "user registered", "email", email)
	return a.openSession(ctx, rec)
}

// Login verifies the email/password pair, applies the daily-rollover
// check, and opens a session. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*users.Session, error) {
	rec, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword(rec.CredentialSecret, []byte(password)) != nil {
		return nil, common.ErrInvalidCredentials
	}

	if rec.LastUsageDate != a.clock.Today() {
		rec, err = a.rolloverRecord(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
	}

	a.log.Info(ctx, "login ok", "email", email)
	return a.openSession(ctx, rec)
}

// Logout destroys the local session. It never fails and is idempotent.
func (a *Authenticator) Logout(ctx context.Context) {
	if err := a.slot.Clear(ctx); err != nil {
		a.log.Warn(ctx, "clearing session slot", "error", err)
	}
	a.holder.Clear()
}

// Current returns the live session after the daily-rollover check, or nil
// when nobody is logged in. Store trouble on this read path degrades to
// nil instead of propagating: an unreachable store looks like "logged
// out", never like a crash.
func (a *Authenticator) Current(ctx context.Context) *users.Session {
	sess := a.holder.Get()
	if sess == nil {
		sess = a.restore(ctx)
		if sess == nil {
			return nil
		}
	}

	if sess.LastUsageDate != a.clock.Today() {
		rec, err := a.rolloverRecord(ctx, sess.UserID)
		if err != nil {
			a.log.Warn(ctx, "persisting daily rollover", "error", err)
			return nil
		}
		sess = rec.Session()
	}

	a.holder.Set(sess)
	return sess
}

// restore rebuilds the session from the durable token slot after a
// process restart.
func (a *Authenticator) restore(ctx context.Context) *users.Session {
	token, err := a.slot.Load(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			a.log.Warn(ctx, "loading session slot", "error", err)
		}
		return nil
	}

	userID, err := UserIDFromToken(token, a.secret)
	if err != nil {
		// Stale or tampered token: drop it so we stop retrying.
		if err := a.slot.Clear(ctx); err != nil {
			a.log.Warn(ctx, "clearing stale session slot", "error", err)
		}
		return nil
	}

	rec, err := a.store.FindByID(ctx, userID)
	if err != nil {
		a.log.Warn(ctx, "restoring session", "error", err)
		return nil
	}

	return rec.Session()
}

// rolloverRecord persists the reset of a stale usage counter so that
// concurrent readers converge on the same state.
func (a *Authenticator) rolloverRecord(ctx context.Context, userID string) (*users.UserRecord, error) {
	return a.store.Mutate(ctx, userID, func(r *users.UserRecord) error {
		r.Rollover(a.clock.Today())
		return nil
	})
}

func (a *Authenticator) openSession(ctx context.Context, rec *users.UserRecord) (*users.Session, error) {
	token, err := GenerateToken(rec.ID, a.secret, a.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}

	// The record is already durable; failing to cache the token locally
	// only costs session restore after a restart.
	if err := a.slot.Save(ctx, token); err != nil {
		a.log.Warn(ctx, "saving session slot", "error", err)
	}

	sess := rec.Session()
	a.holder.Set(sess)
	return sess, nil
}
