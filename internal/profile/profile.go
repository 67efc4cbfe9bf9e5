package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the single user's candidate profile, loaded from
// profile.yml in the data dir. It feeds screening, apply-form answers,
// and outreach drafting.
type Profile struct {
	Name       string   `yaml:"name"`
	Email      string   `yaml:"email"`
	Phone      string   `yaml:"phone"`
	Headline   string   `yaml:"headline"`
	YearsExp   int      `yaml:"years_experience"`
	Skills     []string `yaml:"skills"`
	MustHave   []string `yaml:"must_have"` // posting must mention at least one
	Avoid      []string `yaml:"avoid"`     // posting mentioning any is rejected
	Locations  []string `yaml:"locations"`
	SalaryMin  int      `yaml:"salary_min"`
	ResumePath string   `yaml:"resume_path"`

	// canned answers for apply-form questions, keyed by a lowercase
	// substring of the question label
	Answers map[string]string `yaml:"answers"`

	Summary string `yaml:"summary"` // free-text blurb used in LLM prompts
}

func Load(path string) (Profile, error) {
	var p Profile
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, Validate(p)
}

func Validate(p Profile) error {
	var errs []string
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}
	if len(p.Skills) == 0 {
		errs = append(errs, "skills must have at least 1 entry")
	}
	if p.ResumePath != "" {
		if _, err := os.Stat(p.ResumePath); err != nil {
			errs = append(errs, fmt.Sprintf("resume_path %q not readable", p.ResumePath))
		}
	}
	if len(errs) > 0 {
		return errors.New("profile validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}

// AnswerFor matches a form question label against the canned answers.
// Longest key wins so "years of go" beats "years".
func (p Profile) AnswerFor(label string) (string, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	best := ""
	for k := range p.Answers {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || !strings.Contains(l, key) {
			continue
		}
		if len(key) > len(best) {
			best = k
		}
	}
	if best == "" {
		return "", false
	}
	return p.Answers[best], true
}

// PromptSummary renders the profile for LLM prompts.
func (p Profile) PromptSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s (%d years experience)\n", p.Name, p.Headline, p.YearsExp)
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	}
	if len(p.Locations) > 0 {
		fmt.Fprintf(&b, "Locations: %s\n", strings.Join(p.Locations, ", "))
	}
	if p.SalaryMin > 0 {
		fmt.Fprintf(&b, "Salary floor: %d\n", p.SalaryMin)
	}
	if p.Summary != "" {
		b.WriteString(p.Summary)
		b.WriteString("\n")
	}
	return b.String()
}
