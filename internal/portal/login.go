package portal

import (
	"context"
	"fmt"
	"log"
	"time"
)

// EnsureLoggedIn restores a session if cookies still work, otherwise
// runs the credential flow. A checkpoint page is not retried — the
// portal is asking for a human.
func (p *Portal) EnsureLoggedIn(ctx context.Context) error {
	sel := p.sel()

	if err := p.b.Navigate(ctx, p.cfg.Portal.BaseURL); err != nil {
		return fmt.Errorf("open portal: %w", err)
	}

	if p.b.Has(ctx, sel.LoggedInMarker, 5*time.Second) {
		log.Printf("[portal] session restored from cookies")
		return nil
	}
	if sel.Checkpoint != "" && p.b.Has(ctx, sel.Checkpoint, 2*time.Second) {
		p.b.Screenshot(ctx, "checkpoint")
		return ErrCheckpoint
	}

	log.Printf("[portal] logging in as %s", p.cfg.Portal.Username)
	if err := p.b.Type(ctx, sel.LoginUser, p.cfg.Portal.Username); err != nil {
		return fmt.Errorf("login username: %w", err)
	}
	if err := p.b.Type(ctx, sel.LoginPass, p.password); err != nil {
		return fmt.Errorf("login password: %w", err)
	}
	if err := p.b.Click(ctx, sel.LoginSubmit); err != nil {
		return fmt.Errorf("login submit: %w", err)
	}

	if p.b.Has(ctx, sel.LoggedInMarker, 15*time.Second) {
		return nil
	}
	if sel.Checkpoint != "" && p.b.Has(ctx, sel.Checkpoint, 2*time.Second) {
		p.b.Screenshot(ctx, "checkpoint")
		return ErrCheckpoint
	}
	p.b.Screenshot(ctx, "login-failed")
	return fmt.Errorf("login did not reach the logged-in marker (url=%s)", p.b.URL())
}
