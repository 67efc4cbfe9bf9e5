package portal

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"applypilot/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// maxApplySteps bounds the modal walk; a form longer than this is not
// an Easy Apply anymore.
const maxApplySteps = 8

// EasyApply walks the apply modal for a posting the browser is already
// on (Hydrate navigates there). Unknown required questions abort the
// attempt with ErrUnknownQuestion so the runner can skip, not guess.
func (p *Portal) EasyApply(ctx context.Context, posting domain.Posting) error {
	sel := p.sel()

	if err := p.b.Click(ctx, sel.ApplyButton); err != nil {
		return fmt.Errorf("apply button: %w", err)
	}
	if !p.b.Has(ctx, sel.ApplyModal, 10*time.Second) {
		return fmt.Errorf("apply modal never opened")
	}

	for step := 0; step < maxApplySteps; step++ {
		if err := p.fillStep(ctx); err != nil {
			p.dismissModal(ctx)
			return err
		}

		// submit > review > next, first one present wins
		switch {
		case p.b.Has(ctx, sel.ApplySubmit, 1*time.Second):
			if err := p.b.Click(ctx, sel.ApplySubmit); err != nil {
				p.dismissModal(ctx)
				return fmt.Errorf("submit: %w", err)
			}
			if sel.ApplyDone != "" && !p.b.Has(ctx, sel.ApplyDone, 10*time.Second) {
				p.b.Screenshot(ctx, "apply-unconfirmed-"+posting.PortalID)
				p.dismissModal(ctx)
				return fmt.Errorf("no confirmation after submit")
			}
			p.dismissModal(ctx)
			log.Printf("[portal] applied portal_id=%s title=%q", posting.PortalID, posting.Title)
			return nil
		case p.b.Has(ctx, sel.ApplyReview, 1*time.Second):
			if err := p.b.Click(ctx, sel.ApplyReview); err != nil {
				p.dismissModal(ctx)
				return fmt.Errorf("review: %w", err)
			}
		case p.b.Has(ctx, sel.ApplyNext, 1*time.Second):
			if err := p.b.Click(ctx, sel.ApplyNext); err != nil {
				p.dismissModal(ctx)
				return fmt.Errorf("next: %w", err)
			}
		default:
			p.b.Screenshot(ctx, "apply-stuck-"+posting.PortalID)
			p.dismissModal(ctx)
			return fmt.Errorf("apply modal has no next/review/submit control")
		}
	}

	p.dismissModal(ctx)
	return fmt.Errorf("apply modal did not finish in %d steps", maxApplySteps)
}

// fillStep fills whatever the current modal step shows: phone, resume,
// and canned-answer questions.
func (p *Portal) fillStep(ctx context.Context) error {
	sel := p.sel()

	if sel.PhoneInput != "" && p.prof.Phone != "" && p.b.Has(ctx, sel.PhoneInput, 500*time.Millisecond) {
		if err := p.b.Type(ctx, sel.PhoneInput, p.prof.Phone); err != nil {
			return fmt.Errorf("phone input: %w", err)
		}
	}

	if sel.ResumeInput != "" && p.prof.ResumePath != "" && p.b.Has(ctx, sel.ResumeInput, 500*time.Millisecond) {
		if err := p.b.SetFiles(ctx, sel.ResumeInput, p.prof.ResumePath); err != nil {
			return fmt.Errorf("resume upload: %w", err)
		}
	}

	return p.answerQuestions(ctx)
}

// answerQuestions parses the current step's question blocks from a DOM
// snapshot and types canned answers back through the live page.
func (p *Portal) answerQuestions(ctx context.Context) error {
	sel := p.sel()
	if sel.QuestionBlock == "" {
		return nil
	}
	if !p.b.Has(ctx, sel.QuestionBlock, 500*time.Millisecond) {
		return nil
	}

	html, err := p.b.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	var unanswered string
	doc.Find(sel.QuestionBlock).EachWithBreak(func(i int, block *goquery.Selection) bool {
		label := cleanText(block.Find(sel.QuestionLabel).First().Text())
		if label == "" {
			return true
		}

		answer, ok := p.prof.AnswerFor(label)
		if !ok {
			unanswered = label
			return false
		}

		// nth-of-type targeting back into the live DOM
		target := fmt.Sprintf("%s:nth-of-type(%d) %s", sel.QuestionBlock, i+1, sel.QuestionInput)
		if block.Find(sel.QuestionSelect).Length() > 0 {
			target = fmt.Sprintf("%s:nth-of-type(%d) %s", sel.QuestionBlock, i+1, sel.QuestionSelect)
		}
		if err := p.b.Type(ctx, target, answer); err != nil {
			log.Printf("[portal] question %q: type failed: %v", label, err)
		}
		return true
	})

	if unanswered != "" {
		log.Printf("[portal] no canned answer for question %q", unanswered)
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, unanswered)
	}
	return nil
}

func (p *Portal) dismissModal(ctx context.Context) {
	sel := p.sel()
	if sel.ApplyDismiss == "" {
		return
	}
	if p.b.Has(ctx, sel.ApplyDismiss, 500*time.Millisecond) {
		_ = p.b.Click(ctx, sel.ApplyDismiss)
	}
}
