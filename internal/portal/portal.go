// Package portal drives the one job portal through the browser. Every
// DOM lookup comes from config selectors; the flows here are the
// fragile glue and are written to fail one posting at a time, never the
// whole cycle.
package portal

import (
	"context"
	"errors"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/profile"
)

// Browser is the seam over browser.Session so flows are testable
// without Chrome.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Has(ctx context.Context, selector string, wait time.Duration) bool
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Text(ctx context.Context, selector string) (string, error)
	HTML(ctx context.Context) (string, error)
	SetFiles(ctx context.Context, selector string, paths ...string) error
	URL() string
	Screenshot(ctx context.Context, name string) string
}

// ErrCheckpoint means the portal wants a human: captcha, device
// verification, or similar. The cycle stops applying and notifies.
var ErrCheckpoint = errors.New("portal checkpoint: manual login required")

// ErrUnknownQuestion means the apply form asked something the profile
// has no canned answer for; the job is skipped rather than guessed at.
var ErrUnknownQuestion = errors.New("apply form has an unanswered required question")

type Portal struct {
	b        Browser
	cfg      config.Config
	prof     profile.Profile
	password string
}

func New(b Browser, cfg config.Config, prof profile.Profile, password string) *Portal {
	return &Portal{b: b, cfg: cfg, prof: prof, password: password}
}

func (p *Portal) sel() config.Selectors {
	return p.cfg.Portal.Selectors
}
