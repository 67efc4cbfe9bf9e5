package budget

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuardian(t *testing.T, daily, monthly float64) *Guardian {
	t.Helper()
	g, err := NewGuardian(filepath.Join(t.TempDir(), "budget.json"), daily, monthly, 600)
	require.NoError(t, err)
	return g
}

func TestAllowDeniesOverDailyCap(t *testing.T) {
	g := newTestGuardian(t, 1.0, 10.0)

	require.NoError(t, g.Allow(context.Background(), 0.5))
	g.Record("screen", 0.5)
	require.NoError(t, g.Allow(context.Background(), 0.4))
	g.Record("screen", 0.4)

	err := g.Allow(context.Background(), 0.2)
	require.Error(t, err)
	var exceeded ErrBudgetExceeded
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "daily", exceeded.Period)
}

func TestMonthlyCapCheckedToo(t *testing.T) {
	g := newTestGuardian(t, 0, 1.0) // zero daily cap disables it
	g.Record("screen", 0.95)

	err := g.Allow(context.Background(), 0.1)
	require.Error(t, err)
	var exceeded ErrBudgetExceeded
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "monthly", exceeded.Period)
}

func TestWarnOncePerPeriod(t *testing.T) {
	g := newTestGuardian(t, 1.0, 100.0)
	var warns []string
	g.OnWarn = func(msg string) { warns = append(warns, msg) }

	g.Record("screen", 0.85)
	g.Record("screen", 0.05)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "80%")
}

func TestDayRolloverResetsSpend(t *testing.T) {
	g := newTestGuardian(t, 1.0, 100.0)

	base := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }
	g.Record("screen", 0.9)
	require.Error(t, g.Allow(context.Background(), 0.2))

	g.now = func() time.Time { return base.AddDate(0, 0, 1) }
	require.NoError(t, g.Allow(context.Background(), 0.2))

	st := g.Snapshot()
	assert.Equal(t, "2026-08-28", st.Day)
	assert.Equal(t, 0.0, st.DaySpent)
	assert.Equal(t, 0.9, st.MonthSpent)
}

func TestLedgerPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.json")
	g, err := NewGuardian(path, 10.0, 100.0, 600)
	require.NoError(t, err)
	g.Record("outreach", 0.25)

	g2, err := NewGuardian(path, 10.0, 100.0, 600)
	require.NoError(t, err)
	st := g2.Snapshot()
	assert.Equal(t, 0.25, st.DaySpent)
	assert.Equal(t, 0.25, st.MonthSpent)
	assert.Equal(t, 1, st.Calls)
}
