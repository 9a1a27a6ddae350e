// Package analysis wires the gated text-analysis flow: the classifier
// contract, its Gemini-backed implementation, the quota-checked Analyze
// entry point, and the local analysis history.
package analysis

import (
	"context"
	"errors"
)

// Verdict is the overall call the classifier makes on a text.
type Verdict string

const (
	VerdictLikelyAI    Verdict = "Likely AI-Generated"
	VerdictMixed       Verdict = "Mixed Signals"
	VerdictLikelyHuman Verdict = "Likely Human-Written"
)

// Impact grades how strongly a factor influenced the score.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// FactorType marks which side of the human/AI question a factor supports.
type FactorType string

const (
	// FactorPositive supports human authorship.
	FactorPositive FactorType = "positive"
	// FactorNegative supports AI authorship.
	FactorNegative FactorType = "negative"
	FactorNeutral  FactorType = "neutral"
)

// Factor is a single observation contributing to the verdict.
type Factor struct {
	Factor      string     `json:"factor"`
	Description string     `json:"description"`
	Impact      Impact     `json:"impact"`
	Type        FactorType `json:"type"`
}

// Result is the structured outcome of one classification.
type Result struct {
	// AIProbability is the 0..100 probability the text is AI-generated.
	AIProbability int      `json:"aiProbability"`
	Verdict       Verdict  `json:"verdict"`
	Summary       string   `json:"summary"`
	KeyFactors    []Factor `json:"keyFactors"`
}

// Classifier is the opaque external classification function the
// entitlement layer gates access to. Implementations may fail with
// transport or service errors; they do not enforce quotas.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Result, error)
}

// Unconfigured is a Classifier used when no backend is set up. Every call
// fails, without consuming quota (Analyze only records usage on success).
type Unconfigured struct{}

func (Unconfigured) Classify(context.Context, string) (*Result, error) {
	return nil, errors.New("no classifier configured: set GEMINI_API_KEY")
}
