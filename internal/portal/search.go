package portal

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/domain"
)

// buildSearchURL fills the configured template.
func (p *Portal) buildSearchURL(q config.Query, page int) string {
	u := p.cfg.Portal.SearchURL
	u = strings.ReplaceAll(u, "{keywords}", url.QueryEscape(q.Keywords))
	u = strings.ReplaceAll(u, "{location}", url.QueryEscape(q.Location))
	u = strings.ReplaceAll(u, "{page}", strconv.Itoa(page))
	return u
}

// RunQuery collects job cards for one query, paginating up to its cap.
// A page that yields nothing ends the query early.
func (p *Portal) RunQuery(ctx context.Context, q config.Query) ([]domain.Posting, error) {
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	seen := map[string]bool{}
	var out []domain.Posting

	for page := 0; page < maxPages; page++ {
		target := p.buildSearchURL(q, page)
		if err := p.b.Navigate(ctx, target); err != nil {
			return out, fmt.Errorf("search page %d: %w", page, err)
		}
		if !p.b.Has(ctx, p.sel().JobCard, 10*time.Second) {
			log.Printf("[portal] query %q page %d: no job cards", q.Keywords, page)
			break
		}

		html, err := p.b.HTML(ctx)
		if err != nil {
			return out, fmt.Errorf("search page %d html: %w", page, err)
		}
		cards, err := ParseJobCards(html, p.sel(), p.cfg.Portal.BaseURL)
		if err != nil {
			return out, fmt.Errorf("search page %d parse: %w", page, err)
		}

		fresh := 0
		for _, c := range cards {
			if seen[c.PortalID] {
				continue
			}
			seen[c.PortalID] = true
			out = append(out, c)
			fresh++
		}
		log.Printf("[portal] query %q page %d: %d cards (%d new)", q.Keywords, page, len(cards), fresh)
		if fresh == 0 {
			break
		}
	}
	return out, nil
}

// Hydrate opens the posting page and fills in the description.
func (p *Portal) Hydrate(ctx context.Context, posting *domain.Posting) error {
	if err := p.b.Navigate(ctx, posting.URL); err != nil {
		return fmt.Errorf("open posting %s: %w", posting.PortalID, err)
	}
	if !p.b.Has(ctx, p.sel().JobDescription, 10*time.Second) {
		return fmt.Errorf("posting %s: description never appeared", posting.PortalID)
	}
	html, err := p.b.HTML(ctx)
	if err != nil {
		return err
	}
	desc, err := ParseDescription(html, p.sel())
	if err != nil {
		return err
	}
	posting.Description = desc

	// an apply button that is present on the posting page beats the
	// card-level marker, which some layouts omit
	if p.sel().ApplyButton != "" && p.b.Has(ctx, p.sel().ApplyButton, 2*time.Second) {
		posting.EasyApply = true
	}
	return nil
}
