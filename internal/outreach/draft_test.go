package outreach_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"applypilot/internal/domain"
	"applypilot/internal/outreach"
	"applypilot/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGen struct{ mock.Mock }

func (m *mockGen) GenerateJSON(ctx context.Context, kind, prompt string, out any) error {
	args := m.Called(ctx, kind, prompt, out)
	return args.Error(0)
}

func TestDraft(t *testing.T) {
	gen := &mockGen{}
	gen.On("GenerateJSON", mock.Anything, "outreach", mock.MatchedBy(func(prompt string) bool {
		// the prompt must carry both the role and the profile
		return strings.Contains(prompt, "Go Engineer") &&
			strings.Contains(prompt, "Acme") &&
			strings.Contains(prompt, "Jane Roe")
	}), mock.Anything).Run(func(args mock.Arguments) {
		raw := `{"subject": "Quick note on the Go Engineer role", "message": "Hi — I just applied...", "talking_points": ["infra tooling"]}`
		require.NoError(t, json.Unmarshal([]byte(raw), args.Get(3)))
	}).Return(nil)

	prof := profile.Profile{Name: "Jane Roe", Headline: "Backend Engineer", Skills: []string{"go"}}
	p := domain.Posting{PortalID: "42", Title: "Go Engineer", CompanyName: "Acme"}

	d, err := outreach.Draft(context.Background(), gen, prof, p, "")
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "42", d.PortalID)
	assert.Equal(t, "Quick note on the Go Engineer role", d.Subject)
	assert.Equal(t, []string{"infra tooling"}, d.TalkingPoints)
	assert.False(t, d.CreatedAt.IsZero())
}

func TestDraftEmptyMessageRejected(t *testing.T) {
	gen := &mockGen{}
	gen.On("GenerateJSON", mock.Anything, "outreach", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, json.Unmarshal([]byte(`{"subject": "x", "message": "  "}`), args.Get(3)))
		}).Return(nil)

	_, err := outreach.Draft(context.Background(), gen, profile.Profile{Name: "J"}, domain.Posting{}, "warm")
	assert.Error(t, err)
}

func TestDraftPropagatesGeneratorError(t *testing.T) {
	gen := &mockGen{}
	gen.On("GenerateJSON", mock.Anything, "outreach", mock.Anything, mock.Anything).
		Return(errors.New("budget exceeded"))

	_, err := outreach.Draft(context.Background(), gen, profile.Profile{Name: "J"}, domain.Posting{}, "warm")
	assert.Error(t, err)
}
