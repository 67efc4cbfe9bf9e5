package screen

import (
	"context"
	"fmt"
	"strings"

	"applypilot/internal/domain"
	"applypilot/internal/profile"
)

// Generator is the LLM seam; satisfied by llm.Client.
type Generator interface {
	GenerateJSON(ctx context.Context, kind, prompt string, out any) error
}

const screenPrompt = `You are screening a job posting for one specific candidate.

CANDIDATE:
%s

JOB POSTING:
Title: %s
Company: %s
Location: %s
Description:
%s

Judge whether this candidate should apply. Be strict: a posting that
needs skills the candidate does not have, or seniority far above or
below theirs, is a no.

Return a JSON object with this exact structure:
{
  "fit_score": <0-100 integer>,
  "apply": <true|false>,
  "reasons": ["<short reason>", ...],
  "missing": ["<requirement the candidate lacks>", ...]
}

Return ONLY the JSON object, no markdown, no explanation.`

// maxJDChars keeps prompt cost bounded on very long postings.
const maxJDChars = 6000

type llmVerdict struct {
	FitScore int      `json:"fit_score"`
	Apply    bool     `json:"apply"`
	Reasons  []string `json:"reasons"`
	Missing  []string `json:"missing"`
}

// ScreenLLM runs the second stage. minFit overrides a too-eager model:
// apply=true with a fit below the floor is still a no.
func ScreenLLM(ctx context.Context, gen Generator, prof profile.Profile, p domain.Posting, minFit int) (domain.ScreenVerdict, error) {
	desc := p.Description
	if len(desc) > maxJDChars {
		desc = desc[:maxJDChars]
	}
	prompt := fmt.Sprintf(screenPrompt, strings.TrimSpace(prof.PromptSummary()), p.Title, p.CompanyName, p.LocationRaw, desc)

	var v llmVerdict
	if err := gen.GenerateJSON(ctx, "screen", prompt, &v); err != nil {
		return domain.ScreenVerdict{}, err
	}

	if v.FitScore < 0 {
		v.FitScore = 0
	}
	if v.FitScore > 100 {
		v.FitScore = 100
	}

	verdict := domain.ScreenVerdict{
		FitScore: v.FitScore,
		Apply:    v.Apply && v.FitScore >= minFit,
		Reasons:  v.Reasons,
		Missing:  v.Missing,
	}
	return verdict, nil
}
