package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/clock"
	"veritas/internal/common"
	"veritas/internal/logging"
	"veritas/internal/users"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const longText = "This is a sufficiently long passage of text that easily clears the fifty character minimum for analysis."

type fakeSessions struct {
	sess *users.Session
}

func (f *fakeSessions) Current(context.Context) *users.Session { return f.sess }

type fakeGate struct {
	allow      bool
	recorded   int
	recordErr  error
	lastUserID string
}

func (f *fakeGate) CheckLimit(*users.Session) bool { return f.allow }

func (f *fakeGate) RecordUsage(_ context.Context, userID string) (*users.Session, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded++
	f.lastUserID = userID
	return &users.Session{UserID: userID}, nil
}

type fakeClassifier struct {
	calls  int
	result *Result
	err    error
}

func (f *fakeClassifier) Classify(context.Context, string) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeHistory struct {
	items []HistoryItem
	err   error
}

func (f *fakeHistory) Append(_ context.Context, item *HistoryItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeHistory) ListByUser(_ context.Context, userID string, limit int) ([]HistoryItem, error) {
	return f.items, f.err
}

func newTestService(sessions *fakeSessions, gate *fakeGate, cl *fakeClassifier, hist *fakeHistory) *Service {
	clk := &clock.Fixed{T: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}
	return NewService(sessions, gate, cl, hist, clk, testLogger())
}

func TestAnalyzeHappyPath(t *testing.T) {
	sessions := &fakeSessions{sess: &users.Session{UserID: "u1", Plan: users.PlanFree}}
	gate := &fakeGate{allow: true}
	cl := &fakeClassifier{result: &Result{AIProbability: 87, Verdict: VerdictLikelyAI, Summary: "sum"}}
	hist := &fakeHistory{}

	result, err := newTestService(sessions, gate, cl, hist).Analyze(context.Background(), longText)
	require.NoError(t, err)
	assert.Equal(t, 87, result.AIProbability)

	// One classification, one usage record, one history entry.
	assert.Equal(t, 1, cl.calls)
	assert.Equal(t, 1, gate.recorded)
	assert.Equal(t, "u1", gate.lastUserID)
	require.Len(t, hist.items, 1)
	assert.Equal(t, "u1", hist.items[0].UserID)
	assert.True(t, strings.HasPrefix(longText, hist.items[0].Preview))
}

func TestAnalyzeNotAuthenticated(t *testing.T) {
	gate := &fakeGate{allow: true}
	cl := &fakeClassifier{}

	_, err := newTestService(&fakeSessions{}, gate, cl, &fakeHistory{}).Analyze(context.Background(), longText)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.Equal(t, 0, cl.calls)
}

func TestAnalyzeTooShortCostsNothing(t *testing.T) {
	sessions := &fakeSessions{sess: &users.Session{UserID: "u1"}}
	gate := &fakeGate{allow: true}
	cl := &fakeClassifier{}

	_, err := newTestService(sessions, gate, cl, &fakeHistory{}).Analyze(context.Background(), "too short")
	assert.ErrorIs(t, err, common.ErrInputTooShort)
	assert.Equal(t, 0, cl.calls)
	assert.Equal(t, 0, gate.recorded)
}

func TestAnalyzeQuotaDenied(t *testing.T) {
	sessions := &fakeSessions{sess: &users.Session{UserID: "u1"}}
	gate := &fakeGate{allow: false}
	cl := &fakeClassifier{}

	_, err := newTestService(sessions, gate, cl, &fakeHistory{}).Analyze(context.Background(), longText)
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.Equal(t, 0, cl.calls)
	assert.Equal(t, 0, gate.recorded)
}

func TestAnalyzeClassifierFailureCostsNothing(t *testing.T) {
	sessions := &fakeSessions{sess: &users.Session{UserID: "u1"}}
	gate := &fakeGate{allow: true}
	cl := &fakeClassifier{err: errors.New("service blew up")}

	_, err := newTestService(sessions, gate, cl, &fakeHistory{}).Analyze(context.Background(), longText)
	assert.Error(t, err)
	assert.Equal(t, 0, gate.recorded)
}

func TestAnalyzeRecordFailureSurfaces(t *testing.T) {
	sessions := &fakeSessions{sess: &users.Session{UserID: "u1"}}
	gate := &fakeGate{allow: true, recordErr: common.ErrStoreUnavailable}
	cl := &fakeClassifier{result: &Result{}}

	// A failed increment must never be swallowed; the quota depends on it.
	_, err := newTestService(sessions, gate, cl, &fakeHistory{}).Analyze(context.Background(), longText)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestAnalyzeHistoryFailureIsNotFatal(t *testing.T) {
	sessions := &fakeSessions{sess: &users.Session{UserID: "u1"}}
	gate := &fakeGate{allow: true}
	cl := &fakeClassifier{result: &Result{AIProbability: 12}}
	hist := &fakeHistory{err: errors.New("disk full")}

	result, err := newTestService(sessions, gate, cl, hist).Analyze(context.Background(), longText)
	require.NoError(t, err)
	assert.Equal(t, 12, result.AIProbability)
}

func TestHistoryRequiresLogin(t *testing.T) {
	_, err := newTestService(&fakeSessions{}, &fakeGate{}, &fakeClassifier{}, &fakeHistory{}).
		History(context.Background(), 10)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
}
