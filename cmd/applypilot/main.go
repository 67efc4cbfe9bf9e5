package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"applypilot/internal/alerts"
	"applypilot/internal/browser"
	"applypilot/internal/budget"
	"applypilot/internal/config"
	"applypilot/internal/events"
	"applypilot/internal/httpapi"
	"applypilot/internal/llm"
	"applypilot/internal/memory"
	"applypilot/internal/notify"
	"applypilot/internal/portal"
	"applypilot/internal/profile"
	"applypilot/internal/runner"
	"applypilot/internal/scheduler"
	"applypilot/internal/secrets"
	"applypilot/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments use the keychain
	_ = godotenv.Load()

	dataDir := os.Getenv("APPLYPILOT_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	userCfgPath, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config invalid (%s): %v", userCfgPath, err)
	}

	prof, err := profile.Load(filepath.Join(dataDir, "profile.yml"))
	if err != nil {
		log.Fatalf("profile load failed: %v", err)
	}

	portalPassword, err := secrets.Get(
		secrets.PortalAccount(cfg.Portal.Username, cfg.Portal.BaseURL),
		"APPLYPILOT_PORTAL_PASSWORD",
	)
	if err != nil {
		log.Fatalf("portal password: %v", err)
	}

	mem, err := memory.Open(dataDir)
	if err != nil {
		log.Fatalf("memory open failed: %v", err)
	}
	defer mem.Close()

	archive, err := store.Open(filepath.Join(dataDir, "applypilot.db"))
	if err != nil {
		log.Fatalf("archive open failed: %v", err)
	}
	defer archive.Close()

	hub := events.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// LLM stack is optional: no key or disabled screening means
	// keyword-only operation.
	var (
		guardian *budget.Guardian
		gen      runner.Generator
	)
	if cfg.Screening.LLM.Enabled || cfg.Outreach.Enabled {
		guardian, err = budget.NewGuardian(
			filepath.Join(dataDir, "budget.json"),
			cfg.Budget.DailyUSD, cfg.Budget.MonthlyUSD, cfg.Budget.RequestsPerMin,
		)
		if err != nil {
			log.Fatalf("budget ledger: %v", err)
		}

		apiKey, err := secrets.Get(secrets.AccountGemini, "GEMINI_API_KEY")
		if err != nil {
			log.Printf("no Gemini key, running keyword-only: %v", err)
		} else {
			client, err := llm.NewClient(ctx, apiKey, cfg.Screening.LLM.Model, guardian,
				cfg.Budget.InputPerK, cfg.Budget.OutputPerK)
			if err != nil {
				log.Fatalf("llm client: %v", err)
			}
			gen = client
		}
	}

	var tg *notify.Telegram
	if cfg.Telegram.Enabled {
		token, err := secrets.Get(secrets.AccountBotToken, "TELEGRAM_BOT_TOKEN")
		if err != nil {
			log.Fatalf("telegram token: %v", err)
		}
		tg = notify.NewTelegram(token, cfg.Telegram.ChatID)
	}
	if guardian != nil && tg != nil {
		guardian.OnWarn = func(msg string) {
			sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := tg.Send(sendCtx, "⚠ "+msg); err != nil {
				log.Printf("[main] budget warning notify: %v", err)
			}
			hub.Publish(events.TypeBudgetWarning, msg)
		}
	}

	session := browser.New(browser.Config{
		Headless:      cfg.Portal.Headless,
		DebuggerURL:   cfg.Portal.DebuggerURL,
		NavTimeout:    cfg.NavTimeout(),
		CookieFile:    filepath.Join(dataDir, "cookies.json"),
		ScreenshotDir: filepath.Join(dataDir, "screenshots"),
	})
	defer session.Close()

	var alertSource runner.LeadSource
	if cfg.Alerts.Enabled {
		imapPassword, err := secrets.Get(
			secrets.IMAPAccount(cfg.Alerts.Username, cfg.Alerts.IMAPHost),
			"APPLYPILOT_IMAP_PASSWORD",
		)
		if err != nil {
			log.Printf("alerts disabled, no imap password: %v", err)
		} else {
			alertSource = alerts.New(cfg, imapPassword)
		}
	}

	cycle := &runner.Cycle{
		Cfg:      cfg,
		Prof:     prof,
		Mem:      mem,
		Archive:  archive,
		Gen:      gen,
		Guardian: guardian,
		Alerts:   alertSource,
		Hub:      hub,
	}
	if tg != nil {
		cycle.Notify = tg
	}

	var sched *scheduler.Runner
	sched = scheduler.New("cycle", cfg.CycleInterval(), func(ctx context.Context) error {
		if err := session.Start(ctx); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		cycle.Portal = portal.New(session, cfg, prof, portalPassword)
		err := cycle.Run(ctx)
		if errors.Is(err, portal.ErrCheckpoint) {
			// don't hammer a checkpoint page; a human resumes via /resume
			sched.Pause()
		}
		return err
	})

	srv := httpapi.NewServer(cfg.App.Port, httpapi.Deps{
		Mem:      mem,
		Archive:  archive,
		Guardian: guardian,
		Sched:    sched,
		Hub:      hub,
		CfgPath:  userCfgPath,
	})
	go func() {
		log.Printf("[main] status api on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	if tg != nil {
		go tg.Listen(ctx, cfg.Telegram.PollSeconds, botHandler(sched, mem, guardian))
	}

	log.Printf("[main] applypilot up, cycle every %s, data in %s", cfg.CycleInterval(), dataDir)
	sched.Run(ctx)

	log.Printf("[main] shutting down")
	if err := httpapi.Shutdown(srv, 5*time.Second); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}
}

// botHandler answers the Telegram command loop.
func botHandler(sched *scheduler.Runner, mem *memory.Store, guardian *budget.Guardian) notify.Handler {
	return func(cmd string) string {
		// "/status@mybot extra" -> "/status"
		cmd, _, _ = strings.Cut(strings.TrimSpace(cmd), " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		switch cmd {
		case "/status":
			state := "idle"
			if sched.Busy() {
				state = "cycle running"
			}
			if sched.Paused() {
				state = "paused"
			}
			apps := mem.Applications(0)
			appliedToday := mem.AppliedOn(time.Now())
			return fmt.Sprintf("%s · %d applications on record · %d applied today · %d drafts queued",
				state, len(apps), appliedToday, len(mem.OutreachQueue()))
		case "/pause":
			sched.Pause()
			return "paused — no more cycles until /resume"
		case "/resume":
			sched.Resume()
			sched.Kick()
			return "resumed, starting a cycle now"
		case "/budget":
			if guardian == nil {
				return "LLM disabled, nothing spent"
			}
			s := guardian.Snapshot()
			return fmt.Sprintf("today $%.4f of $%.2f · month $%.4f of $%.2f · %d calls",
				s.DaySpent, s.DailyCap, s.MonthSpent, s.MonthlyCap, s.Calls)
		case "/queue":
			queue := mem.OutreachQueue()
			if len(queue) == 0 {
				return "outreach queue is empty"
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d draft(s) waiting:\n", len(queue))
			for _, d := range queue {
				fmt.Fprintf(&b, "• [%s] %s — %s at %s\n", shortID(d.ID), d.Subject, d.Title, d.CompanyName)
			}
			return b.String()
		default:
			return "commands: /status /pause /resume /budget /queue"
		}
	}
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
