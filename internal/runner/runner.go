// Package runner orchestrates one full cycle: discover postings, screen
// them, apply to the survivors, draft outreach, and report. Each stage
// is best-effort — one bad posting never kills the cycle.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"applypilot/internal/budget"
	"applypilot/internal/config"
	"applypilot/internal/domain"
	"applypilot/internal/events"
	"applypilot/internal/memory"
	"applypilot/internal/notify"
	"applypilot/internal/outreach"
	"applypilot/internal/portal"
	"applypilot/internal/profile"
	"applypilot/internal/screen"

	"golang.org/x/sync/errgroup"
)

// Portal is the browser-driven side of the cycle.
type Portal interface {
	EnsureLoggedIn(ctx context.Context) error
	RunQuery(ctx context.Context, q config.Query) ([]domain.Posting, error)
	Hydrate(ctx context.Context, p *domain.Posting) error
	EasyApply(ctx context.Context, p domain.Posting) error
}

// LeadSource feeds postings from outside the search pages (job-alert
// emails). May be nil.
type LeadSource interface {
	Fetch(ctx context.Context) ([]domain.Posting, error)
}

// Generator is the LLM seam; nil when screening/outreach run without it.
type Generator interface {
	GenerateJSON(ctx context.Context, kind, prompt string, out any) error
}

// Archiver is the sqlite posting archive. May be nil.
type Archiver interface {
	InsertPostingIfNew(ctx context.Context, p domain.Posting) (bool, error)
	SetOutcome(ctx context.Context, portalID, status, reason string, keywordScore, fitScore int, tags []string) error
}

// Notifier delivers the cycle report. May be nil.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type Cycle struct {
	Cfg      config.Config
	Prof     profile.Profile
	Portal   Portal
	Mem      *memory.Store
	Archive  Archiver
	Gen      Generator
	Guardian *budget.Guardian
	Alerts   LeadSource
	Notify   Notifier
	Hub      *events.Hub
}

const defaultMaxApplyPerRun = 5

// Run executes one cycle end to end. The error return covers only
// cycle-level failures (login blocked, discovery found nothing because
// every source errored); per-posting failures land in the report.
func (c *Cycle) Run(ctx context.Context) error {
	start := time.Now()
	rep := notify.CycleReport{StartedAt: start}
	spentBefore := c.spent()

	c.publish(events.TypeCycleStarted, nil)

	postings, err := c.discover(ctx, &rep)
	if err != nil {
		if errors.Is(err, portal.ErrCheckpoint) {
			c.publish(events.TypeLoginBlocked, nil)
			c.send(ctx, "⚠ login blocked: the portal wants a human (captcha/verification). Paused until you log in manually.")
		}
		return err
	}

	applied := c.process(ctx, postings, &rep)
	c.draftOutreach(ctx, applied, &rep)

	rep.Duration = time.Since(start)
	rep.SpentUSD = c.spent() - spentBefore
	c.publish(events.TypeCycleFinished, rep)
	log.Printf("[runner] %s", strings.ReplaceAll(rep.String(), "\n", " | "))
	c.send(ctx, rep.String())
	return nil
}

// discover runs search and the alert inbox concurrently and returns the
// postings nobody has seen before.
func (c *Cycle) discover(ctx context.Context, rep *notify.CycleReport) ([]domain.Posting, error) {
	// each goroutine writes only its own locals; rep is merged after Wait
	var (
		fromSearch []domain.Posting
		fromAlerts []domain.Posting
		searchErrs []string
		alertErrs  []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.Portal.EnsureLoggedIn(gctx); err != nil {
			return err
		}
		for _, q := range c.Cfg.Portal.Queries {
			batch, err := c.Portal.RunQuery(gctx, q)
			if err != nil {
				log.Printf("[runner] query %q: %v", q.Keywords, err)
				searchErrs = append(searchErrs, fmt.Sprintf("query %q: %v", q.Keywords, err))
				continue
			}
			fromSearch = append(fromSearch, batch...)
		}
		return nil
	})
	g.Go(func() error {
		if c.Alerts == nil {
			return nil
		}
		leads, err := c.Alerts.Fetch(gctx)
		if err != nil {
			// the inbox being down must not block applying
			log.Printf("[runner] alerts: %v", err)
			alertErrs = append(alertErrs, fmt.Sprintf("alerts: %v", err))
			return nil
		}
		fromAlerts = append(fromAlerts, leads...)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.Errors = append(rep.Errors, searchErrs...)
	rep.Errors = append(rep.Errors, alertErrs...)

	seen := map[string]bool{}
	var fresh []domain.Posting
	for _, p := range append(fromSearch, fromAlerts...) {
		if p.PortalID == "" || seen[p.PortalID] {
			continue
		}
		seen[p.PortalID] = true
		if c.Mem.Seen(p.PortalID) || c.Mem.AlreadyApplied(p.PortalID) {
			continue
		}
		fresh = append(fresh, p)
	}
	rep.Found = len(fresh)
	log.Printf("[runner] discovered search=%d alerts=%d fresh=%d", len(fromSearch), len(fromAlerts), len(fresh))
	return fresh, nil
}

// process screens every fresh posting and applies to the ones that pass,
// under the per-run and per-day caps. Returns the applied postings.
// A cap cutting the loop short leaves the rest unseen and unrecorded,
// so the next cycle picks them up without re-spending LLM budget now.
func (c *Cycle) process(ctx context.Context, postings []domain.Posting, rep *notify.CycleReport) []domain.Posting {
	maxRun := c.Cfg.Portal.MaxApplyPerRun
	if maxRun <= 0 {
		maxRun = defaultMaxApplyPerRun
	}
	maxDay := c.Cfg.Portal.MaxApplyPerDay

	var applied []domain.Posting
	for i := range postings {
		p := &postings[i]
		if rep.Applied >= maxRun {
			log.Printf("[runner] run cap reached, deferring %d posting(s) to the next cycle", len(postings)-i)
			break
		}
		if maxDay > 0 && c.Mem.AppliedOn(time.Now()) >= maxDay {
			log.Printf("[runner] day cap reached, deferring %d posting(s)", len(postings)-i)
			break
		}

		c.Mem.MarkSeen(p.PortalID)
		c.archiveInsert(ctx, *p)

		if err := c.Portal.Hydrate(ctx, p); err != nil {
			log.Printf("[runner] hydrate %s: %v", p.PortalID, err)
			c.recordSkip(ctx, *p, domain.ScreenVerdict{}, "hydrate_failed")
			rep.Skipped++
			continue
		}

		verdict, rejected := c.screen(ctx, *p)
		rep.Screened++
		if rejected != "" {
			c.recordSkip(ctx, *p, verdict, rejected)
			rep.Skipped++
			continue
		}
		if !verdict.Apply {
			c.recordSkip(ctx, *p, verdict, "low_fit")
			rep.Skipped++
			continue
		}
		if !p.EasyApply {
			c.recordSkip(ctx, *p, verdict, "no_easy_apply")
			rep.Skipped++
			continue
		}

		if err := c.Portal.EasyApply(ctx, *p); err != nil {
			if errors.Is(err, portal.ErrUnknownQuestion) {
				log.Printf("[runner] apply %s: %v", p.PortalID, err)
				c.recordOutcome(ctx, *p, verdict, domain.StatusSkipped, err.Error())
				rep.Skipped++
				continue
			}
			log.Printf("[runner] apply %s failed: %v", p.PortalID, err)
			c.recordOutcome(ctx, *p, verdict, domain.StatusFailed, err.Error())
			rep.Failed++
			continue
		}

		c.recordOutcome(ctx, *p, verdict, domain.StatusApplied, "")
		c.publish(events.TypeApplied, map[string]string{
			"portal_id": p.PortalID, "title": p.Title, "company": p.CompanyName,
		})
		rep.Applied++
		applied = append(applied, *p)
	}
	return applied
}

// screen runs the keyword stage and, when it passes, the LLM stage. A
// spent budget downgrades to keyword-only instead of blocking the run.
func (c *Cycle) screen(ctx context.Context, p domain.Posting) (domain.ScreenVerdict, string) {
	kw := screen.ScoreKeywords(c.Cfg, c.Prof, p)
	verdict := domain.ScreenVerdict{KeywordScore: kw.Score, Tags: kw.Tags}
	if kw.Reject != "" {
		return verdict, kw.Reject
	}

	if !c.Cfg.Screening.LLM.Enabled || c.Gen == nil {
		verdict.Apply = true
		verdict.LLMSkipped = true
		return verdict, ""
	}

	llmVerdict, err := screen.ScreenLLM(ctx, c.Gen, c.Prof, p, c.Cfg.Screening.MinFitScore)
	if err != nil {
		var exceeded budget.ErrBudgetExceeded
		if errors.As(err, &exceeded) {
			// budget gone is not the posting's fault; keyword stage
			// already passed, so proceed on its verdict
			c.publish(events.TypeBudgetWarning, exceeded.Error())
			verdict.Apply = true
			verdict.LLMSkipped = true
			return verdict, ""
		}
		// malformed JSON or API failure: don't apply on half a verdict
		log.Printf("[runner] llm screen %s: %v", p.PortalID, err)
		return verdict, "llm_error"
	}

	llmVerdict.KeywordScore = kw.Score
	llmVerdict.Tags = append(kw.Tags, llmVerdict.Tags...)
	return llmVerdict, ""
}

func (c *Cycle) draftOutreach(ctx context.Context, applied []domain.Posting, rep *notify.CycleReport) {
	if !c.Cfg.Outreach.Enabled || c.Gen == nil {
		return
	}
	for _, p := range applied {
		draft, err := outreach.Draft(ctx, c.Gen, c.Prof, p, c.Cfg.Outreach.Tone)
		if err != nil {
			var exceeded budget.ErrBudgetExceeded
			if errors.As(err, &exceeded) {
				log.Printf("[runner] outreach: %v", err)
				return // no budget left, stop drafting
			}
			log.Printf("[runner] outreach %s: %v", p.PortalID, err)
			continue
		}
		if err := c.Mem.EnqueueOutreach(draft); err != nil {
			log.Printf("[runner] outreach enqueue: %v", err)
			continue
		}
		rep.Drafted++
	}
}

func (c *Cycle) recordSkip(ctx context.Context, p domain.Posting, v domain.ScreenVerdict, reason string) {
	c.recordOutcome(ctx, p, v, domain.StatusSkipped, reason)
}

func (c *Cycle) recordOutcome(ctx context.Context, p domain.Posting, v domain.ScreenVerdict, status, reason string) {
	app := domain.Application{
		PortalID:    p.PortalID,
		Title:       p.Title,
		CompanyName: p.CompanyName,
		URL:         p.URL,
		Status:      status,
		Reason:      reason,
		Verdict:     v,
		AppliedAt:   time.Now().UTC(),
	}
	if err := c.Mem.RecordApplication(app); err != nil {
		log.Printf("[runner] record %s: %v", p.PortalID, err)
	}
	if c.Archive != nil {
		if err := c.Archive.SetOutcome(ctx, p.PortalID, status, reason, v.KeywordScore, v.FitScore, v.Tags); err != nil {
			log.Printf("[runner] archive outcome %s: %v", p.PortalID, err)
		}
	}
}

func (c *Cycle) archiveInsert(ctx context.Context, p domain.Posting) {
	if c.Archive == nil {
		return
	}
	if _, err := c.Archive.InsertPostingIfNew(ctx, p); err != nil {
		log.Printf("[runner] archive insert %s: %v", p.PortalID, err)
	}
}

func (c *Cycle) spent() float64 {
	if c.Guardian == nil {
		return 0
	}
	return c.Guardian.Snapshot().MonthSpent
}

func (c *Cycle) publish(typ string, data any) {
	if c.Hub != nil {
		c.Hub.Publish(typ, data)
	}
}

func (c *Cycle) send(ctx context.Context, text string) {
	if c.Notify == nil {
		return
	}
	if err := c.Notify.Send(ctx, text); err != nil {
		log.Printf("[runner] notify: %v", err)
	}
}
