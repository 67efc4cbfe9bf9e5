// Package llm wraps the Gemini API behind the budget guardian. Every
// call is estimated, gated, and booked.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"applypilot/internal/budget"

	"google.golang.org/genai"
)

type Client struct {
	gc       *genai.Client
	model    string
	guardian *budget.Guardian
	inPerK   float64 // USD per 1k prompt tokens
	outPerK  float64 // USD per 1k output tokens
}

func NewClient(ctx context.Context, apiKey, model string, guardian *budget.Guardian, inPerK, outPerK float64) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		gc:       gc,
		model:    model,
		guardian: guardian,
		inPerK:   inPerK,
		outPerK:  outPerK,
	}, nil
}

// assumedOutputTokens pads the pre-call estimate; actual usage from the
// response replaces it when recording.
const assumedOutputTokens = 512

// EstimateTokens is the usual chars/4 heuristic.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Client) cost(inTokens, outTokens int) float64 {
	return float64(inTokens)/1000.0*c.inPerK + float64(outTokens)/1000.0*c.outPerK
}

// GenerateJSON asks for a JSON-only response and decodes it into out.
// kind labels the spend in the budget ledger.
func (c *Client) GenerateJSON(ctx context.Context, kind, prompt string, out any) error {
	est := c.cost(EstimateTokens(prompt), assumedOutputTokens)
	if err := c.guardian.Allow(ctx, est); err != nil {
		return err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}

	inTok := EstimateTokens(prompt)
	outTok := assumedOutputTokens
	if resp.UsageMetadata != nil {
		if resp.UsageMetadata.PromptTokenCount > 0 {
			inTok = int(resp.UsageMetadata.PromptTokenCount)
		}
		if resp.UsageMetadata.CandidatesTokenCount > 0 {
			outTok = int(resp.UsageMetadata.CandidatesTokenCount)
		}
	}
	c.guardian.Record(kind, c.cost(inTok, outTok))

	raw := StripFences(resp.Text())
	if raw == "" {
		return fmt.Errorf("gemini returned empty response")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Printf("[llm] malformed JSON from model: %.200s", raw)
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

// StripFences removes a ```json ... ``` wrapper some models insist on.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
