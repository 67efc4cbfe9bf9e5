package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}
	if cfg.Portal.BaseURL == "" {
		errs = append(errs, "portal.base_url is required")
	}
	if cfg.Portal.SearchURL == "" {
		errs = append(errs, "portal.search_url is required")
	}
	if len(cfg.Portal.Queries) == 0 {
		errs = append(errs, "portal.queries must have at least 1 query")
	}
	for i, q := range cfg.Portal.Queries {
		if strings.TrimSpace(q.Keywords) == "" {
			errs = append(errs, fmt.Sprintf("portal.queries[%d].keywords is required", i))
		}
		if q.MaxPages < 0 {
			errs = append(errs, fmt.Sprintf("portal.queries[%d].max_pages must be >= 0", i))
		}
	}
	if cfg.Portal.MaxApplyPerRun < 0 {
		errs = append(errs, "portal.max_apply_per_run must be >= 0")
	}
	if cfg.Portal.MaxApplyPerDay < 0 {
		errs = append(errs, "portal.max_apply_per_day must be >= 0")
	}
	if cfg.Screening.MinKeywordScore < 0 {
		errs = append(errs, "screening.min_keyword_score must be >= 0")
	}
	if cfg.Screening.MinFitScore < 0 || cfg.Screening.MinFitScore > 100 {
		errs = append(errs, "screening.min_fit_score must be 0..100")
	}
	if cfg.Screening.LLM.Enabled && cfg.Screening.LLM.Model == "" {
		errs = append(errs, "screening.llm.model is required when llm is enabled")
	}
	if cfg.Budget.DailyUSD < 0 || cfg.Budget.MonthlyUSD < 0 {
		errs = append(errs, "budget caps must be >= 0")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.ChatID == 0 {
		errs = append(errs, "telegram.chat_id is required when telegram is enabled")
	}
	if cfg.Alerts.Enabled {
		if cfg.Alerts.IMAPHost == "" {
			errs = append(errs, "alerts.imap_host is required when alerts are enabled")
		}
		if cfg.Alerts.Username == "" {
			errs = append(errs, "alerts.username is required when alerts are enabled")
		}
	}

	checkRules := func(name string, rules []Rule) {
		for i, r := range rules {
			if r.Tag == "" {
				errs = append(errs, fmt.Sprintf("%s[%d].tag is required", name, i))
			}
			if len(r.Any) == 0 {
				errs = append(errs, fmt.Sprintf("%s[%d].any must have at least 1 term", name, i))
			}
			for j, term := range r.Any {
				if term == "" {
					errs = append(errs, fmt.Sprintf("%s[%d].any[%d] cannot be empty", name, i, j))
				}
			}
		}
	}
	checkRules("screening.title_rules", cfg.Screening.TitleRules)
	checkRules("screening.keyword_rules", cfg.Screening.KeywordRules)

	for i, p := range cfg.Screening.Penalties {
		if p.Reason == "" {
			errs = append(errs, fmt.Sprintf("screening.penalties[%d].reason is required", i))
		}
		if len(p.Any) == 0 {
			errs = append(errs, fmt.Sprintf("screening.penalties[%d].any must have at least 1 term", i))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}
