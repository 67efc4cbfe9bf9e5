package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alertFixture = `From: Job Alerts <alerts@example-jobs.com>
Subject: 8 new jobs for "golang"
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset="utf-8"

New jobs matching your search:
https://www.example-jobs.com/jobs/view/5550001/?trk=mail-text
--b1
Content-Type: text/html; charset="utf-8"
Content-Transfer-Encoding: quoted-printable

<html><body>
<a href=3D"https://www.example-jobs.com/jobs/view/5550002/?trk=3Demail">Sen=
ior Go Engineer</a>
<a href=3D"https://tracking.other.com/jobs/view/9990000">Sponsored</a>
<a href=3D"https://www.example-jobs.com/unsubscribe">Unsubscribe</a>
</body></html>
--b1--
`

func TestParseMessageDecodesMIMEParts(t *testing.T) {
	text, html := parseMessage([]byte(alertFixture))
	assert.Contains(t, text, "/jobs/view/5550001/")
	// quoted-printable soft break and =3D both decoded
	assert.Contains(t, html, `href="https://www.example-jobs.com/jobs/view/5550002/?trk=email"`)
	assert.Contains(t, html, "Senior Go Engineer")
}

func TestExtractLeads(t *testing.T) {
	text, html := parseMessage([]byte(alertFixture))

	leads := ExtractLeads(html, text, "example-jobs.com")
	require.Len(t, leads, 2)

	assert.Equal(t, "5550002", leads[0].PortalID)
	assert.Equal(t, "Senior Go Engineer", leads[0].Title)
	assert.Equal(t, "https://www.example-jobs.com/jobs/view/5550002/", leads[0].URL)
	assert.Equal(t, "alert", leads[0].Source)

	assert.Equal(t, "5550001", leads[1].PortalID)
	assert.Empty(t, leads[1].Title) // naked URL, no anchor text
}

func TestExtractLeadsIgnoresForeignHosts(t *testing.T) {
	html := `<a href="https://evil.example.net/jobs/view/1234567">Job</a>`
	assert.Empty(t, ExtractLeads(html, "", "example-jobs.com"))
}

func TestExtractLeadsDedupes(t *testing.T) {
	html := `
	<a href="https://www.example-jobs.com/jobs/view/7770001">Backend Engineer (Go)</a>
	<a href="https://www.example-jobs.com/jobs/view/7770001/?trk=dup">View job</a>`
	leads := ExtractLeads(html, "", "example-jobs.com")
	require.Len(t, leads, 1)
	assert.Equal(t, "Backend Engineer (Go)", leads[0].Title)
}
