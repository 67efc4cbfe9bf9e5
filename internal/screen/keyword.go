package screen

import (
	"strings"

	"applypilot/internal/config"
	"applypilot/internal/domain"
	"applypilot/internal/profile"
)

// KeywordResult is the cheap first screening stage. Reject is non-empty
// when the posting is out regardless of score.
type KeywordResult struct {
	Score  int
	Tags   []string
	Reject string
}

// ScoreKeywords runs substring rules with fixed weights over
// title+description. Profile avoid-terms veto, must-have terms gate.
func ScoreKeywords(cfg config.Config, prof profile.Profile, p domain.Posting) KeywordResult {
	text := strings.ToLower(p.Title + " " + p.Description)

	for _, a := range prof.Avoid {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && strings.Contains(text, a) {
			return KeywordResult{Reject: "avoid:" + a}
		}
	}

	if len(prof.MustHave) > 0 {
		hit := false
		for _, m := range prof.MustHave {
			m = strings.ToLower(strings.TrimSpace(m))
			if m != "" && strings.Contains(text, m) {
				hit = true
				break
			}
		}
		if !hit {
			return KeywordResult{Reject: "no_must_have"}
		}
	}

	score := 0
	var tags []string

	applyRules := func(rules []config.Rule) {
		for _, r := range rules {
			for _, needle := range r.Any {
				n := strings.ToLower(strings.TrimSpace(needle))
				if n == "" {
					continue
				}
				if strings.Contains(text, n) {
					score += r.Weight
					tags = append(tags, r.Tag)
					break
				}
			}
		}
	}

	applyRules(cfg.Screening.TitleRules)
	applyRules(cfg.Screening.KeywordRules)

	for _, pen := range cfg.Screening.Penalties {
		for _, needle := range pen.Any {
			n := strings.ToLower(strings.TrimSpace(needle))
			if n == "" {
				continue
			}
			if strings.Contains(text, n) {
				score += pen.Weight
				break
			}
		}
	}

	if score < cfg.Screening.MinKeywordScore {
		return KeywordResult{Score: score, Tags: uniq(tags), Reject: "below_min_score"}
	}
	return KeywordResult{Score: score, Tags: uniq(tags)}
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
