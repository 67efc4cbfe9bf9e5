package portal

import (
	"net/url"
	"strings"

	"applypilot/internal/config"
	"applypilot/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// ParseJobCards pulls postings out of a search-results page snapshot.
// Parsing happens on the HTML string, not live DOM, so it is cheap to
// test against fixtures.
func ParseJobCards(html string, sel config.Selectors, baseURL string) ([]domain.Posting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []domain.Posting

	doc.Find(sel.JobCard).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(sel.CardLink).First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		abs := absoluteURL(baseURL, strings.TrimSpace(href))
		if abs == "" {
			return
		}

		id := ExtractPostingID(abs)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		title := cleanText(card.Find(sel.CardTitle).First().Text())
		if title == "" {
			title = cleanText(link.Text())
		}
		if title == "" || looksLikeJunkTitle(title) {
			return
		}

		p := domain.Posting{
			PortalID:    id,
			Title:       title,
			CompanyName: cleanText(card.Find(sel.CardCompany).First().Text()),
			LocationRaw: cleanText(card.Find(sel.CardLocation).First().Text()),
			URL:         abs,
			Source:      "search",
		}
		if sel.CardEasyApply != "" && card.Find(sel.CardEasyApply).Length() > 0 {
			p.EasyApply = true
		}
		p.WorkMode = guessWorkMode(p.LocationRaw + " " + title)
		out = append(out, p)
	})

	return out, nil
}

// ParseDescription extracts the JD text from a posting page snapshot.
func ParseDescription(html string, sel config.Selectors) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	node := doc.Find(sel.JobDescription).First()
	if node.Length() == 0 {
		return "", nil
	}
	return cleanText(node.Text()), nil
}

// ExtractPostingID takes the digit run of the last URL path segment
// that has one. Portal job URLs look like /jobs/view/4021337 or
// /jobs/view/senior-go-engineer-4021337.
func ExtractPostingID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if id := trailingDigits(segs[i]); id != "" {
			return id
		}
	}
	return ""
}

func trailingDigits(s string) string {
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if end-start < 4 { // portal ids are long; avoids matching "v2" style segments
		return ""
	}
	return s[start:end]
}

func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimSuffix(base, "/") + href
	}
	return ""
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func looksLikeJunkTitle(t string) bool {
	l := strings.ToLower(t)
	return l == "view" || l == "apply" || strings.HasPrefix(l, "see all")
}

func guessWorkMode(s string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "remote"):
		return "Remote"
	case strings.Contains(l, "hybrid"):
		return "Hybrid"
	case strings.Contains(l, "on-site"), strings.Contains(l, "onsite"):
		return "Onsite"
	default:
		return "Unknown"
	}
}
