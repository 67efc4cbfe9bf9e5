// Package alerts turns the portal's job-alert emails into posting leads.
// The portal mails out digests faster than search surfaces them, so the
// inbox is a second, cheaper discovery channel.
package alerts

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/domain"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const (
	maxMessages  = 200
	fetchTimeout = 120 * time.Second
)

type Fetcher struct {
	cfg      config.Config
	password string
}

func New(cfg config.Config, password string) *Fetcher {
	return &Fetcher{cfg: cfg, password: password}
}

// Fetch scans unseen mail in the configured mailbox, extracts posting
// links for the portal host, and marks the processed messages \Seen.
// Messages that yield no links are still marked so they are not
// rescanned every cycle.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.Posting, error) {
	a := f.cfg.Alerts
	if !a.Enabled {
		return nil, nil
	}
	if a.IMAPHost == "" || a.Username == "" {
		return nil, errors.New("alerts enabled but imap_host/username missing")
	}
	if f.password == "" {
		return nil, errors.New("alerts enabled but no imap password in keyring")
	}

	addr := a.IMAPHost
	if !strings.Contains(addr, ":") {
		addr += ":993"
	}
	mailbox := a.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	c, err := dialAndLogin(ctx, addr, a.Username, f.password)
	if err != nil {
		return nil, err
	}
	defer logoutAndClose(c)

	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %q: %w", mailbox, err)
	}

	msgs, err := fetchUnseen(ctx, c, maxMessages)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var (
		leads     []domain.Posting
		processed []imap.UID
		seen      = map[string]bool{}
	)
	for _, m := range msgs {
		bodyText, htmlBody := parseMessage(m.Raw)
		for _, lead := range ExtractLeads(htmlBody, bodyText, a.LinkHost) {
			if seen[lead.PortalID] {
				continue
			}
			seen[lead.PortalID] = true
			if !m.Date.IsZero() {
				d := m.Date
				lead.PostedAt = &d
			}
			leads = append(leads, lead)
		}
		processed = append(processed, m.UID)
	}
	log.Printf("[alerts] scanned=%d leads=%d", len(msgs), len(leads))

	if err := markSeen(c, processed); err != nil {
		return leads, fmt.Errorf("mark seen: %w", err)
	}
	return leads, nil
}

type message struct {
	UID  imap.UID
	Date time.Time
	Raw  []byte
}

func dialAndLogin(ctx context.Context, addr, username, password string) (*imapclient.Client, error) {
	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// fetchUnseen pulls recent unseen messages by UID, newest first, using
// BODY.PEEK[] so a failed run does not hide mail from the next one.
func fetchUnseen(ctx context.Context, c *imapclient.Client, max int) ([]message, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().AddDate(0, 0, -14),
	}
	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]message, 0, len(uids))
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		m := message{UID: buf.UID}
		if buf.Envelope != nil {
			m.Date = buf.Envelope.Date
		}
		if m.Date.IsZero() {
			m.Date = buf.InternalDate
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			m.Raw = append([]byte(nil), b...)
		}
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func markSeen(c *imapclient.Client, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cmd := c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

func logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[alerts] imap logout: %v", err)
	}
	_ = c.Close()
}
