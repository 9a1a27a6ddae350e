package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"veritas/internal/common"
	"veritas/internal/entitlement"
	"veritas/internal/users"
)

func (a *App) getStatus() string {
	sess := a.holder.Get()
	if sess == nil {
		return "(not logged in)"
	}
	if sess.Plan == users.PlanPro {
		return fmt.Sprintf("(%s pro)", sess.Email)
	}
	used := sess.EffectiveUsage(a.clock.Today())
	return fmt.Sprintf("(%s free %d/%d)", sess.Email, used, entitlement.FreeDailyQuota)
}

// Root restores any previous session and runs the REPL.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to Veritas (type 'help' for commands)")

	if sess := a.auth.Current(ctx); sess != nil {
		printlnFn(fmt.Sprintf("Logged in as %s", sess.Email))
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	sess, err := a.auth.Register(ctx, email, password, name)
	if err != nil {
		printlnFn("Registration failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Welcome, %s!", sess.Name))
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	sess, err := a.auth.Login(ctx, email, password)
	if err != nil {
		printlnFn("Login failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Welcome back, %s!", sess.Name))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.auth.Logout(ctx)
	printlnFn("Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	sess := a.auth.Current(ctx)
	if sess == nil {
		printlnFn("Not logged in")
		return nil
	}
	printlnFn(fmt.Sprintf("%s <%s>, plan: %s, analyses today: %d",
		sess.Name, sess.Email, sess.Plan, sess.EffectiveUsage(a.clock.Today())))
	return nil
}

func (a *App) Analyze(ctx context.Context) error {
	text, err := getMultiline(a.reader, "Paste the text to analyze", os.Stdout)
	if err != nil {
		return err
	}

	result, err := a.analysis.Analyze(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrQuotaExceeded):
			printlnFn("Daily limit reached. Type 'upgrade' to go Pro for unlimited analyses.")
		case errors.Is(err, common.ErrInputTooShort):
			printlnFn("Text is too short for reliable analysis (50+ characters needed).")
		case errors.Is(err, common.ErrNotAuthenticated):
			printlnFn("Please log in first.")
		default:
			printlnFn("Analysis failed:", err)
		}
		return err
	}

	printlnFn(fmt.Sprintf("AI probability: %d%% (%s)", result.AIProbability, result.Verdict))
	printlnFn(result.Summary)
	for _, f := range result.KeyFactors {
		printlnFn(fmt.Sprintf("  [%s/%s] %s: %s", f.Impact, f.Type, f.Factor, f.Description))
	}
	return nil
}

func (a *App) History(ctx context.Context) error {
	items, err := a.analysis.History(ctx, 10)
	if err != nil {
		printlnFn("Cannot load history:", err)
		return err
	}
	if len(items) == 0 {
		printlnFn("No analyses yet")
		return nil
	}
	for _, item := range items {
		printlnFn(fmt.Sprintf("%s  %3d%%  %-20s  %s",
			item.CreatedAt.Format("2006-01-02 15:04"),
			item.Result.AIProbability, item.Result.Verdict, item.Preview))
	}
	return nil
}

func (a *App) Upgrade(ctx context.Context) error {
	sess := a.auth.Current(ctx)
	if sess == nil {
		printlnFn("Please log in first.")
		return common.ErrNotAuthenticated
	}
	if sess.Plan == users.PlanPro {
		printlnFn("You are already on the Pro plan.")
		return nil
	}

	card, err := getSimpleText(a.reader, "Enter card number", os.Stdout)
	if err != nil {
		return err
	}

	printlnFn("Processing payment...")
	upgraded, err := a.payments.Upgrade(ctx, sess.UserID, card)
	if err != nil {
		if errors.Is(err, common.ErrPaymentNotConfirmed) {
			printlnFn("Payment was not confirmed, plan unchanged.")
		} else {
			printlnFn("Upgrade failed:", err)
		}
		return err
	}
	printlnFn(fmt.Sprintf("Upgrade complete, enjoy unlimited analyses on the %s plan!", upgraded.Plan))
	return nil
}
