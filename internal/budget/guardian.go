package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExceeded is returned by Allow when a period cap is spent.
// Callers are expected to skip the LLM stage, not fail the cycle.
type ErrBudgetExceeded struct {
	Period string
	Spent  float64
	Cap    float64
}

func (e ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("budget exceeded: %s spend %.4f USD >= cap %.2f USD", e.Period, e.Spent, e.Cap)
}

type Entry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"` // screen/outreach
	CostUSD float64   `json:"cost_usd"`
}

// ledger is the on-disk shape. Day is "2006-01-02", Month "2006-01".
type ledger struct {
	Day        string  `json:"day"`
	DaySpent   float64 `json:"day_spent_usd"`
	Month      string  `json:"month"`
	MonthSpent float64 `json:"month_spent_usd"`
	Entries    []Entry `json:"entries,omitempty"`
}

const maxEntries = 1000

// Guardian gates every LLM call: a QPS limiter in front of the API plus
// running day/month totals persisted to a JSON ledger. Warn once at 80%
// of a cap, hard deny at the cap.
type Guardian struct {
	mu         sync.Mutex
	path       string
	dailyCap   float64
	monthlyCap float64
	limiter    *rate.Limiter
	led        ledger
	warned     map[string]bool

	// OnWarn, if set, receives threshold warnings (wired to the notifier).
	OnWarn func(msg string)

	now func() time.Time
}

func NewGuardian(path string, dailyCap, monthlyCap float64, requestsPerMin int) (*Guardian, error) {
	if requestsPerMin <= 0 {
		requestsPerMin = 10
	}
	g := &Guardian{
		path:       path,
		dailyCap:   dailyCap,
		monthlyCap: monthlyCap,
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), 1),
		warned:     make(map[string]bool),
		now:        time.Now,
	}
	if err := g.load(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guardian) load() error {
	b, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(b, &g.led); err != nil {
		// a corrupt ledger starts over rather than bricking the tool
		log.Printf("[budget] ledger unreadable, starting fresh: %v", err)
		g.led = ledger{}
	}
	return nil
}

func (g *Guardian) persistLocked() {
	b, err := json.MarshalIndent(g.led, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, g.path)
}

// rollLocked resets totals when the wall-clock day/month changes.
func (g *Guardian) rollLocked() {
	now := g.now()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")
	if g.led.Day != day {
		g.led.Day = day
		g.led.DaySpent = 0
		delete(g.warned, "day")
	}
	if g.led.Month != month {
		g.led.Month = month
		g.led.MonthSpent = 0
		g.led.Entries = nil
		delete(g.warned, "month")
	}
}

// Allow blocks on the rate limiter and then checks whether estCost fits
// under both caps. A zero cap disables that cap.
func (g *Guardian) Allow(ctx context.Context, estCost float64) error {
	g.mu.Lock()
	g.rollLocked()
	if g.dailyCap > 0 && g.led.DaySpent+estCost > g.dailyCap {
		err := ErrBudgetExceeded{Period: "daily", Spent: g.led.DaySpent, Cap: g.dailyCap}
		g.mu.Unlock()
		return err
	}
	if g.monthlyCap > 0 && g.led.MonthSpent+estCost > g.monthlyCap {
		err := ErrBudgetExceeded{Period: "monthly", Spent: g.led.MonthSpent, Cap: g.monthlyCap}
		g.mu.Unlock()
		return err
	}
	g.mu.Unlock()

	return g.limiter.Wait(ctx)
}

// Record books the actual cost of a finished call and persists the
// ledger. Fires the 80% warning the first time a period crosses it.
func (g *Guardian) Record(kind string, costUSD float64) {
	g.mu.Lock()
	g.rollLocked()
	g.led.DaySpent += costUSD
	g.led.MonthSpent += costUSD
	g.led.Entries = append(g.led.Entries, Entry{At: g.now().UTC(), Kind: kind, CostUSD: costUSD})
	if n := len(g.led.Entries); n > maxEntries {
		g.led.Entries = g.led.Entries[n-maxEntries:]
	}

	var warnings []string
	if g.dailyCap > 0 && !g.warned["day"] && g.led.DaySpent >= 0.8*g.dailyCap {
		g.warned["day"] = true
		warnings = append(warnings, fmt.Sprintf("daily LLM spend %.4f USD is over 80%% of the %.2f USD cap", g.led.DaySpent, g.dailyCap))
	}
	if g.monthlyCap > 0 && !g.warned["month"] && g.led.MonthSpent >= 0.8*g.monthlyCap {
		g.warned["month"] = true
		warnings = append(warnings, fmt.Sprintf("monthly LLM spend %.4f USD is over 80%% of the %.2f USD cap", g.led.MonthSpent, g.monthlyCap))
	}
	g.persistLocked()
	onWarn := g.OnWarn
	g.mu.Unlock()

	for _, w := range warnings {
		log.Printf("[budget] %s", w)
		if onWarn != nil {
			onWarn(w)
		}
	}
}

type Status struct {
	Day        string  `json:"day"`
	DaySpent   float64 `json:"day_spent_usd"`
	DailyCap   float64 `json:"daily_cap_usd"`
	Month      string  `json:"month"`
	MonthSpent float64 `json:"month_spent_usd"`
	MonthlyCap float64 `json:"monthly_cap_usd"`
	Calls      int     `json:"calls_this_month"`
}

func (g *Guardian) Snapshot() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	return Status{
		Day:        g.led.Day,
		DaySpent:   g.led.DaySpent,
		DailyCap:   g.dailyCap,
		Month:      g.led.Month,
		MonthSpent: g.led.MonthSpent,
		MonthlyCap: g.monthlyCap,
		Calls:      len(g.led.Entries),
	}
}
