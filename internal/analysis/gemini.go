package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

const systemInstruction = `You are Veritas, a linguistic forensic engine designed to detect AI-generated text, with a specialized focus on academic rigor.

Perform a multi-step forensic analysis on the provided text:

Step 1: Reference & Citation Integrity — identify citations and check whether the cited references plausibly support the statements made. Hallucinated or mismatched citations are a strong indicator of AI.

Step 2: Semantic Consistency — compare claims made in the introduction/literature review against the context of the references used; flag superficial term stuffing.

Step 3: Evidence Verification — cross-reference claims with the results/evidence section and confirm specific, quantifiable data backs them.

Step 4: Stylometric Analysis — look for low perplexity, low burstiness, and repetitive connectives.

Scoring: failures in steps 1 or 3 must drastically increase aiProbability; deep, specific consistency between claims, references, and data lowers it.

Output a structured JSON with the probability and key factors found during these steps.`

// responseSchema constrains Gemini's output to the Result shape.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"aiProbability": {
			Type:        genai.TypeInteger,
			Description: "Percentage probability (0-100) that the text is AI-generated.",
		},
		"verdict": {
			Type: genai.TypeString,
			Enum: []string{string(VerdictLikelyAI), string(VerdictMixed), string(VerdictLikelyHuman)},
		},
		"summary": {
			Type:        genai.TypeString,
			Description: "Concise executive summary of the forensic analysis.",
		},
		"keyFactors": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"factor":      {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"impact":      {Type: genai.TypeString, Enum: []string{string(ImpactHigh), string(ImpactMedium), string(ImpactLow)}},
					"type":        {Type: genai.TypeString, Enum: []string{string(FactorPositive), string(FactorNegative), string(FactorNeutral)}},
				},
				Required: []string{"factor", "description", "impact", "type"},
			},
		},
	},
	Required: []string{"aiProbability", "verdict", "summary", "keyFactors"},
}

// GeminiClassifier implements Classifier with Google's Gemini API.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier creates a classifier bound to the given API key and
// model. An empty model selects gemini-2.5-flash.
func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClassifier{client: client, model: model}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(text),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](2048)},
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	payload := resp.Text()
	if payload == "" {
		return nil, fmt.Errorf("no response received from the analysis engine")
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("parsing analysis result: %w", err)
	}

	return &result, nil
}
