// Package browser owns the single Chrome instance behind the portal
// flows: launch or attach, cookie persistence so login survives
// restarts, and small element helpers with timeouts.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type Config struct {
	Headless      bool
	DebuggerURL   string // attach instead of launch when set
	NavTimeout    time.Duration
	CookieFile    string // JSON snapshot in the data dir; empty disables persistence
	ScreenshotDir string
}

type Session struct {
	cfg     Config
	browser *rod.Browser
	page    *rod.Page
}

func New(cfg Config) *Session {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	return &Session{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one, opens the
// single working page, and restores saved cookies.
func (s *Session) Start(ctx context.Context) error {
	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		log.Printf("[browser] stale connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
		s.page = nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		u, err := launcher.New().Headless(s.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = b

	if err := s.restoreCookies(); err != nil {
		log.Printf("[browser] cookie restore failed: %v", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             1440,
		Height:            900,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		log.Printf("[browser] set viewport: %v", err)
	}
	return nil
}

func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	_ = s.SaveCookies()
	err := s.browser.Close()
	s.browser = nil
	s.page = nil
	return err
}

func (s *Session) ready() error {
	if s.page == nil {
		return fmt.Errorf("browser not started")
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.ready(); err != nil {
		return err
	}
	p := s.page.Context(ctx).Timeout(s.cfg.NavTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return p.WaitLoad()
}

// Has reports whether selector resolves within a short wait.
func (s *Session) Has(ctx context.Context, selector string, wait time.Duration) bool {
	if err := s.ready(); err != nil {
		return false
	}
	_, err := s.page.Context(ctx).Timeout(wait).Element(selector)
	return err == nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.ready(); err != nil {
		return err
	}
	el, err := s.page.Context(ctx).Timeout(s.cfg.NavTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *Session) Type(ctx context.Context, selector, text string) error {
	if err := s.ready(); err != nil {
		return err
	}
	el, err := s.page.Context(ctx).Timeout(s.cfg.NavTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(text)
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	el, err := s.page.Context(ctx).Timeout(s.cfg.NavTimeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.Text()
}

// HTML returns the full page HTML for goquery-side parsing.
func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.page.Context(ctx).HTML()
}

// SetFiles attaches a local file to an <input type=file>.
func (s *Session) SetFiles(ctx context.Context, selector string, paths ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	el, err := s.page.Context(ctx).Timeout(s.cfg.NavTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.SetFiles(paths)
}

// URL returns the current page URL.
func (s *Session) URL() string {
	if s.page == nil {
		return ""
	}
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Screenshot saves a PNG next to the data dir for failure forensics.
func (s *Session) Screenshot(ctx context.Context, name string) string {
	if s.page == nil || s.cfg.ScreenshotDir == "" {
		return ""
	}
	b, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		log.Printf("[browser] screenshot: %v", err)
		return ""
	}
	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(s.cfg.ScreenshotDir, fmt.Sprintf("%s-%s.png", name, time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return ""
	}
	return path
}

// SaveCookies snapshots browser cookies to the cookie file.
func (s *Session) SaveCookies() error {
	if s.browser == nil || s.cfg.CookieFile == "" {
		return nil
	}
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.CookieFile), 0o755); err != nil {
		return err
	}
	tmp := s.cfg.CookieFile + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.cfg.CookieFile)
}

func (s *Session) restoreCookies() error {
	if s.cfg.CookieFile == "" {
		return nil
	}
	b, err := os.ReadFile(s.cfg.CookieFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(b, &cookies); err != nil {
		return err
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}
	if len(params) == 0 {
		return nil
	}
	return s.browser.SetCookies(params)
}
