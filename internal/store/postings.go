package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"applypilot/internal/domain"
)

type PostingRow struct {
	ID           int64     `json:"id"`
	PortalID     string    `json:"portal_id"`
	Company      string    `json:"company"`
	Title        string    `json:"title"`
	Location     string    `json:"location"`
	WorkMode     string    `json:"work_mode"`
	URL          string    `json:"url"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	KeywordScore int       `json:"keyword_score"`
	FitScore     int       `json:"fit_score"`
	Tags         []string  `json:"tags"`
	FirstSeen    time.Time `json:"first_seen"`
}

// InsertPostingIfNew archives a posting once; re-seeing it is a no-op.
func (d *DB) InsertPostingIfNew(ctx context.Context, p domain.Posting) (added bool, err error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO postings (portal_id, company, title, location, work_mode, url, source, first_seen, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		p.PortalID, p.CompanyName, p.Title, p.LocationRaw, p.WorkMode, p.URL, p.Source, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert posting: %w", err)
	}

	// SQLite doesn’t report rows affected reliably with IGNORE across
	// drivers; SELECT changes() does.
	var changes int
	if e := d.Pool.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); e == nil {
		return changes > 0, nil
	}
	return true, nil
}

// SetOutcome records the screening/apply outcome for a posting.
func (d *DB) SetOutcome(ctx context.Context, portalID, status, reason string, keywordScore, fitScore int, tags []string) error {
	tagsB, _ := json.Marshal(tags)
	if tags == nil {
		tagsB = []byte("[]")
	}
	_, err := d.Pool.ExecContext(ctx, `
UPDATE postings
SET status = ?, reason = ?, keyword_score = ?, fit_score = ?, tags = ?, updated_at = ?
WHERE portal_id = ?;`,
		status, reason, keywordScore, fitScore, string(tagsB), time.Now().UTC().Format(time.RFC3339), portalID,
	)
	if err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}
	return nil
}

// ListPostings returns the newest postings, optionally filtered by status.
func (d *DB) ListPostings(ctx context.Context, status string, limit int) ([]PostingRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	q := `
SELECT id, portal_id, company, title, location, work_mode, url, source, status, reason, keyword_score, fit_score, tags, first_seen
FROM postings`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY first_seen DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostingRow
	for rows.Next() {
		var r PostingRow
		var tagsJSON, firstSeen string
		if err := rows.Scan(&r.ID, &r.PortalID, &r.Company, &r.Title, &r.Location, &r.WorkMode, &r.URL,
			&r.Source, &r.Status, &r.Reason, &r.KeywordScore, &r.FitScore, &tagsJSON, &firstSeen); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		r.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus feeds the /status endpoint.
func (d *DB) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT status, COUNT(*) FROM postings GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
