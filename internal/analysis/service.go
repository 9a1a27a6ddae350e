package analysis

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"veritas/internal/clock"
	"veritas/internal/common"
	"veritas/internal/logging"
	"veritas/internal/users"
)

// minAnalyzableRunes is the smallest input the classifier can judge
// reliably. Shorter texts are rejected before any quota is consumed.
const minAnalyzableRunes = 50

// previewRunes bounds the text excerpt kept in history.
const previewRunes = 80

// SessionSource supplies the current session; the authenticator
// satisfies it.
type SessionSource interface {
	Current(ctx context.Context) *users.Session
}

// Gate is the entitlement surface the flow needs; the entitlement engine
// satisfies it.
type Gate interface {
	CheckLimit(sess *users.Session) bool
	RecordUsage(ctx context.Context, userID string) (*users.Session, error)
}

// Service runs the gated analysis flow: current session, quota check,
// classification, usage record, history append.
type Service struct {
	sessions   SessionSource
	gate       Gate
	classifier Classifier
	history    HistoryRepository
	clock      clock.Clock
	log        logging.Logger
}

func NewService(sessions SessionSource, gate Gate, classifier Classifier,
	history HistoryRepository, clk clock.Clock, log logging.Logger) *Service {
	return &Service{
		sessions:   sessions,
		gate:       gate,
		classifier: classifier,
		history:    history,
		clock:      clk,
		log:        log,
	}
}

// Analyze classifies text on behalf of the logged-in user. The classifier
// is called exactly once per successful quota-gated request, and the
// usage counter is only incremented after a successful classification.
// Quota denial is ErrQuotaExceeded; it costs nothing.
func (s *Service) Analyze(ctx context.Context, text string) (*Result, error) {
	sess := s.sessions.Current(ctx)
	if sess == nil {
		return nil, common.ErrNotAuthenticated
	}

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minAnalyzableRunes {
		return nil, fmt.Errorf("%w: need at least %d characters", common.ErrInputTooShort, minAnalyzableRunes)
	}

	if !s.gate.CheckLimit(sess) {
		return nil, common.ErrQuotaExceeded
	}

	result, err := s.classifier.Classify(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	if _, err := s.gate.RecordUsage(ctx, sess.UserID); err != nil {
		// The increment is a write path: it must surface, never be
		// skipped silently.
		return nil, err
	}

	s.archive(ctx, sess.UserID, trimmed, result)
	return result, nil
}

// History lists the current user's most recent analyses.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryItem, error) {
	sess := s.sessions.Current(ctx)
	if sess == nil {
		return nil, common.ErrNotAuthenticated
	}
	return s.history.ListByUser(ctx, sess.UserID, limit)
}

// archive appends to local history. Failure is logged, not surfaced: the
// analysis itself already succeeded.
func (s *Service) archive(ctx context.Context, userID, text string, result *Result) {
	preview := text
	if utf8.RuneCountInString(preview) > previewRunes {
		preview = string([]rune(preview)[:previewRunes])
	}

	item := &HistoryItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: s.clock.Now(),
		Preview:   preview,
		Result:    *result,
	}
	if err := s.history.Append(ctx, item); err != nil {
		s.log.Warn(ctx, "archiving analysis", "error", err)
	}
}
