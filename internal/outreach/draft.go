// Package outreach drafts recruiter messages for applied jobs. Drafts
// go into the review queue; nothing is ever sent automatically.
package outreach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"applypilot/internal/domain"
	"applypilot/internal/profile"

	"github.com/google/uuid"
)

// Generator is the LLM seam; satisfied by llm.Client.
type Generator interface {
	GenerateJSON(ctx context.Context, kind, prompt string, out any) error
}

const draftPrompt = `You write short outreach messages from a job applicant to the recruiter or hiring manager for a role they just applied to.

APPLICANT:
%s

ROLE:
%s at %s
%s

TONE: %s

Rules:
- 80-120 words, conversational, no flattery boilerplate
- Every claim must be traceable to the applicant summary above
- Mention one concrete, relevant strength; do not list skills
- End with a low-pressure ask (a short call or pointer to the right person)

Return a JSON object with this exact structure:
{
  "subject": "<one line>",
  "message": "<the message body>",
  "talking_points": ["<point for a follow-up call>", ...]
}

Return ONLY the JSON object, no markdown, no explanation.`

const maxJDChars = 3000

type draftResponse struct {
	Subject       string   `json:"subject"`
	Message       string   `json:"message"`
	TalkingPoints []string `json:"talking_points"`
}

func Draft(ctx context.Context, gen Generator, prof profile.Profile, p domain.Posting, tone string) (domain.OutreachDraft, error) {
	if strings.TrimSpace(tone) == "" {
		tone = "friendly and direct"
	}
	desc := p.Description
	if len(desc) > maxJDChars {
		desc = desc[:maxJDChars]
	}

	prompt := fmt.Sprintf(draftPrompt, strings.TrimSpace(prof.PromptSummary()), p.Title, p.CompanyName, desc, tone)

	var resp draftResponse
	if err := gen.GenerateJSON(ctx, "outreach", prompt, &resp); err != nil {
		return domain.OutreachDraft{}, err
	}
	if strings.TrimSpace(resp.Message) == "" {
		return domain.OutreachDraft{}, fmt.Errorf("model returned empty message")
	}

	return domain.OutreachDraft{
		ID:            uuid.NewString(),
		PortalID:      p.PortalID,
		CompanyName:   p.CompanyName,
		Title:         p.Title,
		Subject:       resp.Subject,
		Message:       resp.Message,
		TalkingPoints: resp.TalkingPoints,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
