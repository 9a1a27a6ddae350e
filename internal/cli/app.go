// Package cli is the interactive front end: a small REPL over the
// authenticator, the entitlement engine, and the gated analysis flow.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"veritas/internal/analysis"
	"veritas/internal/auth"
	"veritas/internal/clock"
	"veritas/internal/config"
	"veritas/internal/entitlement"
	"veritas/internal/logging"
	"veritas/internal/payment"
	"veritas/internal/session"
	"veritas/internal/store"
	"veritas/internal/store/postgres"
	"veritas/internal/store/sqlite"
)

// App wires the services together and carries the REPL state.
type App struct {
	config   *config.Config
	auth     *auth.Authenticator
	engine   *entitlement.Engine
	analysis *analysis.Service
	payments *payment.Service
	holder   *session.Holder
	clock    clock.Clock
	reader   *bufio.Reader
	log      logging.Logger

	localDB *sql.DB
	remote  *postgres.Store
}

// NewApp builds the application. The store backend is chosen once, here:
// a configured remote DSN selects the Postgres store, otherwise the
// local SQLite store serves as the fallback. The local database is
// opened either way; it always hosts the session slot and the history.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	localDB, err := sqlite.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	app := &App{
		config:  cfg,
		clock:   clk,
		reader:  bufio.NewReader(os.Stdin),
		log:     log,
		localDB: localDB,
	}

	var st store.UserRecordStore
	if cfg.DatabaseDSN != "" {
		remote, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("opening remote store: %w", err)
		}
		app.remote = remote
		st = remote
		log.Info(ctx, "using remote user store")
	} else {
		st = sqlite.New(localDB)
		log.Info(ctx, "no remote store configured, using local store")
	}

	app.holder = session.NewHolder()
	slot := session.NewSlot(localDB)

	app.auth = auth.New(st, slot, app.holder, clk,
		[]byte(cfg.SessionSecret), cfg.SessionValidity, log)
	app.engine = entitlement.New(st, app.holder, clk, log)

	var classifier analysis.Classifier
	if cfg.GeminiAPIKey != "" {
		classifier, err = analysis.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("creating classifier: %w", err)
		}
	} else {
		log.Warn(ctx, "GEMINI_API_KEY is not set, analysis is disabled")
		classifier = analysis.Unconfigured{}
	}

	history := analysis.NewSQLiteHistoryRepository(localDB)
	app.analysis = analysis.NewService(app.auth, app.engine, classifier, history, clk, log)
	app.payments = payment.NewService(&payment.MockConfirmer{Delay: 1500 * time.Millisecond}, app.engine, log)

	return app, nil
}

// Run starts the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close releases database handles.
func (a *App) Close() {
	if a.remote != nil {
		_ = a.remote.Close()
	}
	_ = a.localDB.Close()
}

func (a *App) isLoggedIn() bool {
	return a.holder.Get() != nil
}
