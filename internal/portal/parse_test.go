package portal_test

import (
	"testing"

	"applypilot/internal/config"
	"applypilot/internal/portal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSelectors() config.Selectors {
	return config.Selectors{
		JobCard:        "li.job-card",
		CardTitle:      ".job-card__title",
		CardCompany:    ".job-card__company",
		CardLocation:   ".job-card__location",
		CardLink:       "a.job-card__link",
		CardEasyApply:  ".job-card__easy-apply",
		JobDescription: "div.jobs-description",
	}
}

const searchFixture = `
<html><body><ul>
  <li class="job-card">
    <a class="job-card__link" href="/jobs/view/senior-go-engineer-4021337">
      <span class="job-card__title">Senior Go Engineer</span>
    </a>
    <span class="job-card__company">Acme Corp</span>
    <span class="job-card__location">Remote · EMEA</span>
    <span class="job-card__easy-apply">Easy Apply</span>
  </li>
  <li class="job-card">
    <a class="job-card__link" href="https://www.example-jobs.com/jobs/view/9988776">
      <span class="job-card__title">Platform Engineer</span>
    </a>
    <span class="job-card__company">Globex</span>
    <span class="job-card__location">Berlin (Hybrid)</span>
  </li>
  <li class="job-card">
    <a class="job-card__link" href="/jobs/view/senior-go-engineer-4021337">
      <span class="job-card__title">Senior Go Engineer (duplicate)</span>
    </a>
  </li>
  <li class="job-card">
    <a class="job-card__link" href="/jobs/view/no-id-here">
      <span class="job-card__title">Broken card</span>
    </a>
  </li>
</ul></body></html>`

func TestParseJobCards(t *testing.T) {
	got, err := portal.ParseJobCards(searchFixture, testSelectors(), "https://www.example-jobs.com")
	require.NoError(t, err)
	require.Len(t, got, 2) // duplicate and id-less cards dropped

	assert.Equal(t, "4021337", got[0].PortalID)
	assert.Equal(t, "Senior Go Engineer", got[0].Title)
	assert.Equal(t, "Acme Corp", got[0].CompanyName)
	assert.Equal(t, "Remote · EMEA", got[0].LocationRaw)
	assert.Equal(t, "https://www.example-jobs.com/jobs/view/senior-go-engineer-4021337", got[0].URL)
	assert.True(t, got[0].EasyApply)
	assert.Equal(t, "Remote", got[0].WorkMode)

	assert.Equal(t, "9988776", got[1].PortalID)
	assert.False(t, got[1].EasyApply)
	assert.Equal(t, "Hybrid", got[1].WorkMode)
}

func TestParseDescription(t *testing.T) {
	html := `<html><body>
	  <div class="jobs-description"><p>We&nbsp;build   things.</p><p>Go required.</p></div>
	</body></html>`

	got, err := portal.ParseDescription(html, testSelectors())
	require.NoError(t, err)
	assert.Equal(t, "We build things.Go required.", got)
}

func TestExtractPostingID(t *testing.T) {
	cases := map[string]string{
		"https://x.com/jobs/view/4021337":                   "4021337",
		"https://x.com/jobs/view/senior-go-engineer-402133": "402133",
		"https://x.com/jobs/view/4021337/?ref=search":       "4021337",
		"https://x.com/jobs/view/v2":                        "",
		"not a url at all ::":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, portal.ExtractPostingID(in), in)
	}
}
