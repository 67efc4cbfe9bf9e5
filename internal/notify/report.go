package notify

import (
	"fmt"
	"strings"
	"time"
)

// CycleReport is what one finished cycle tells the user.
type CycleReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Found     int
	Screened  int
	Applied   int
	Failed    int
	Skipped   int
	Drafted   int
	SpentUSD  float64
	Errors    []string
}

func (r CycleReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle done in %s\n", r.Duration.Round(time.Second))
	fmt.Fprintf(&b, "found %d new · screened %d · applied %d", r.Found, r.Screened, r.Applied)
	if r.Failed > 0 {
		fmt.Fprintf(&b, " · failed %d", r.Failed)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&b, " · skipped %d", r.Skipped)
	}
	b.WriteString("\n")
	if r.Drafted > 0 {
		fmt.Fprintf(&b, "%d outreach draft(s) waiting for review\n", r.Drafted)
	}
	fmt.Fprintf(&b, "LLM spend this cycle: $%.4f", r.SpentUSD)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n⚠ %s", strings.Join(r.Errors, "; "))
	}
	return b.String()
}
