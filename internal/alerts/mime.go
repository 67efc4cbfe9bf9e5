package alerts

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"applypilot/internal/domain"
	"applypilot/internal/portal"

	"github.com/PuerkitoBio/goquery"
)

const maxBodyBytes = 6 << 20

var reNakedURL = regexp.MustCompile(`https?://[^\s<>"']+`)

// parseMessage decodes an RFC822 message into its text and HTML parts.
func parseMessage(raw []byte) (bodyText, htmlBody string) {
	if len(raw) == 0 {
		return "", ""
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	body, _ := io.ReadAll(io.LimitReader(msg.Body, maxBodyBytes))
	plain, htmlPart := extractTextParts(msg.Header, body)
	if plain == "" && htmlPart == "" {
		plain = string(body)
	}
	return plain, htmlPart
}

func extractTextParts(h mail.Header, body []byte) (plain, htmlPart string) {
	cte := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return string(decodeTransferEncoding(body, cte)), ""
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return string(decodeTransferEncoding(body, cte)), ""
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			partCTE := strings.ToLower(strings.TrimSpace(p.Header.Get("Content-Transfer-Encoding")))
			pMedia, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			pMedia = strings.ToLower(pMedia)

			b, _ := io.ReadAll(io.LimitReader(p, maxBodyBytes))
			b = decodeTransferEncoding(b, partCTE)

			if strings.HasPrefix(pMedia, "multipart/") {
				pl, ht := extractTextParts(mail.Header(p.Header), b)
				if len(pl) > len(plain) {
					plain = pl
				}
				if len(ht) > len(htmlPart) {
					htmlPart = ht
				}
				continue
			}
			switch {
			case strings.HasPrefix(pMedia, "text/plain") && len(b) > len(plain):
				plain = string(b)
			case strings.HasPrefix(pMedia, "text/html") && len(b) > len(htmlPart):
				htmlPart = string(b)
			}
		}
		return plain, htmlPart
	}

	s := decodeTransferEncoding(body, cte)
	if strings.HasPrefix(mediaType, "text/html") {
		return "", string(s)
	}
	return string(s), ""
}

func decodeTransferEncoding(b []byte, cte string) []byte {
	switch cte {
	case "base64":
		out, _ := io.ReadAll(io.LimitReader(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b)), maxBodyBytes))
		return out
	case "quoted-printable":
		out, _ := io.ReadAll(io.LimitReader(quotedprintable.NewReader(bytes.NewReader(b)), maxBodyBytes))
		return out
	default:
		return b
	}
}

// ExtractLeads pulls posting links out of an alert email. Only links
// on linkHost that carry a posting ID count; tracking and unsubscribe
// links fall out naturally because they have no ID in the path.
func ExtractLeads(htmlBody, bodyText, linkHost string) []domain.Posting {
	if linkHost == "" {
		return nil
	}

	type cand struct {
		href  string
		label string
	}
	var cands []cand

	if htmlBody != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
		if err == nil {
			doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				label := strings.Join(strings.Fields(a.Text()), " ")
				cands = append(cands, cand{href: href, label: label})
			})
		}
	}
	for _, u := range reNakedURL.FindAllString(bodyText, -1) {
		cands = append(cands, cand{href: strings.TrimRight(u, `.,);:]"'`)})
	}

	var out []domain.Posting
	seen := map[string]bool{}
	for _, c := range cands {
		u, err := url.Parse(strings.TrimSpace(c.href))
		if err != nil || !strings.Contains(strings.ToLower(u.Host), strings.ToLower(linkHost)) {
			continue
		}
		id := portal.ExtractPostingID(c.href)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		// strip tracking params, keep the bare posting URL
		u.RawQuery = ""
		u.Fragment = ""
		p := domain.Posting{
			PortalID: id,
			URL:      u.String(),
			Source:   "alert",
		}
		if looksLikeTitle(c.label) {
			p.Title = c.label
		}
		out = append(out, p)
	}
	return out
}

func looksLikeTitle(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return false
	}
	switch strings.ToLower(s) {
	case "view job", "see all jobs", "easy apply", "unsubscribe":
		return false
	}
	letters := 0
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			letters++
		}
	}
	return letters >= 5
}
