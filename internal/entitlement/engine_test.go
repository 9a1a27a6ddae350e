package entitlement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/clock"
	"veritas/internal/common"
	"veritas/internal/logging"
	"veritas/internal/session"
	"veritas/internal/store/sqlite"
	"veritas/internal/users"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fixture struct {
	engine *Engine
	store  *sqlite.Store
	holder *session.Holder
	clock  *clock.Fixed
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()

	db, err := sqlite.Open(context.Background(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	st := sqlite.New(db)
	holder := session.NewHolder()
	clk := &clock.Fixed{T: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}

	return &fixture{
		engine: New(st, holder, clk, testLogger()),
		store:  st,
		holder: holder,
		clock:  clk,
	}
}

func (f *fixture) seedUser(t *testing.T, plan users.Plan, usage int, date string) *users.UserRecord {
	t.Helper()
	rec := &users.UserRecord{
		ID:               "u1",
		Email:            "ann@example.com",
		Name:             "Ann",
		CredentialSecret: []byte("hash"),
		Plan:             plan,
		DailyUsage:       usage,
		LastUsageDate:    date,
		Version:          1,
	}
	require.NoError(t, f.store.Insert(context.Background(), rec))
	return rec
}

func TestQuotaMonotonicity(t *testing.T) {
	f := newFixture(t, "quota")
	ctx := context.Background()
	f.seedUser(t, users.PlanFree, 0, "2026-08-28")

	sess := &users.Session{UserID: "u1", Plan: users.PlanFree, DailyUsage: 0, LastUsageDate: "2026-08-28"}

	// Three gated actions pass; the fourth check is denied.
	for i := 0; i < FreeDailyQuota; i++ {
		require.True(t, f.engine.CheckLimit(sess), "call %d should be allowed", i+1)
		var err error
		sess, err = f.engine.RecordUsage(ctx, "u1")
		require.NoError(t, err)
	}

	assert.Equal(t, FreeDailyQuota, sess.DailyUsage)
	assert.False(t, f.engine.CheckLimit(sess))
}

func TestCheckLimitRollsOverStaleCounter(t *testing.T) {
	f := newFixture(t, "checkrollover")

	// Quota exhausted yesterday does not count against today.
	sess := &users.Session{UserID: "u1", Plan: users.PlanFree, DailyUsage: 3, LastUsageDate: "2026-08-27"}
	assert.True(t, f.engine.CheckLimit(sess))
}

func TestCheckLimitNilSession(t *testing.T) {
	f := newFixture(t, "nilsession")
	assert.False(t, f.engine.CheckLimit(nil))
}

func TestRecordUsageFusesRollover(t *testing.T) {
	f := newFixture(t, "recordrollover")
	ctx := context.Background()
	f.seedUser(t, users.PlanFree, 3, "2026-08-27")

	sess, err := f.engine.RecordUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.DailyUsage)
	assert.Equal(t, "2026-08-28", sess.LastUsageDate)
}

func TestProUnlimited(t *testing.T) {
	f := newFixture(t, "prounlimited")

	for _, usage := range []int{0, 3, 1000} {
		sess := &users.Session{UserID: "u1", Plan: users.PlanPro, DailyUsage: usage, LastUsageDate: "2026-08-28"}
		assert.True(t, f.engine.CheckLimit(sess), "pro with usage %d", usage)
	}
}

func TestRecordUsageSafePastQuota(t *testing.T) {
	f := newFixture(t, "pastquota")
	ctx := context.Background()
	f.seedUser(t, users.PlanPro, 3, "2026-08-28")

	// RecordUsage has no upper clamp; CheckLimit is the gate.
	sess, err := f.engine.RecordUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, sess.DailyUsage)
	assert.True(t, f.engine.CheckLimit(sess))
}

func TestRecordUsageUnknownUser(t *testing.T) {
	f := newFixture(t, "unknown")

	_, err := f.engine.RecordUsage(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpgradeIdempotent(t *testing.T) {
	f := newFixture(t, "upgrade")
	ctx := context.Background()
	f.seedUser(t, users.PlanFree, 2, "2026-08-28")

	sess, err := f.engine.UpgradeToPro(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, users.PlanPro, sess.Plan)
	// Counters are untouched by the upgrade.
	assert.Equal(t, 2, sess.DailyUsage)

	sess, err = f.engine.UpgradeToPro(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, users.PlanPro, sess.Plan)
}

func TestRecordUsageRefreshesHolder(t *testing.T) {
	f := newFixture(t, "refresh")
	ctx := context.Background()
	rec := f.seedUser(t, users.PlanFree, 0, "2026-08-28")

	f.holder.Set(rec.Session())

	_, err := f.engine.RecordUsage(ctx, "u1")
	require.NoError(t, err)

	cached := f.holder.Get()
	require.NotNil(t, cached)
	assert.Equal(t, 1, cached.DailyUsage)
}

func TestRecordUsageIgnoresForeignHolder(t *testing.T) {
	f := newFixture(t, "foreignholder")
	ctx := context.Background()
	f.seedUser(t, users.PlanFree, 0, "2026-08-28")

	f.holder.Set(&users.Session{UserID: "someone-else"})

	_, err := f.engine.RecordUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", f.holder.Get().UserID)
}

func TestConcurrentRecordUsageNoLostUpdates(t *testing.T) {
	f := newFixture(t, "concurrent")
	ctx := context.Background()
	f.seedUser(t, users.PlanFree, 0, "2026-08-28")

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordUsage(ctx, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := f.store.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, n, rec.DailyUsage)
}
