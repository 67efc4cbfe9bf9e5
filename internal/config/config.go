package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Tag    string   `yaml:"tag"`
	Weight int      `yaml:"weight"`
	Any    []string `yaml:"any"`
}

type Penalty struct {
	Reason string   `yaml:"reason"`
	Weight int      `yaml:"weight"`
	Any    []string `yaml:"any"`
}

// Selectors maps every DOM lookup the portal flows need. Kept in config
// so a portal redesign is a config edit, not a rebuild.
type Selectors struct {
	LoginUser      string `yaml:"login_user"`
	LoginPass      string `yaml:"login_pass"`
	LoginSubmit    string `yaml:"login_submit"`
	LoggedInMarker string `yaml:"logged_in_marker"`
	Checkpoint     string `yaml:"checkpoint"` // captcha / verify page marker
	JobCard        string `yaml:"job_card"`
	CardTitle      string `yaml:"card_title"`
	CardCompany    string `yaml:"card_company"`
	CardLocation   string `yaml:"card_location"`
	CardLink       string `yaml:"card_link"`
	CardEasyApply  string `yaml:"card_easy_apply"`
	NextPage       string `yaml:"next_page"`
	JobDescription string `yaml:"job_description"`
	ApplyButton    string `yaml:"apply_button"`
	ApplyModal     string `yaml:"apply_modal"`
	ApplyNext      string `yaml:"apply_next"`
	ApplyReview    string `yaml:"apply_review"`
	ApplySubmit    string `yaml:"apply_submit"`
	ApplyDone      string `yaml:"apply_done"`
	ApplyDismiss   string `yaml:"apply_dismiss"`
	PhoneInput     string `yaml:"phone_input"`
	ResumeInput    string `yaml:"resume_input"`
	QuestionBlock  string `yaml:"question_block"`
	QuestionLabel  string `yaml:"question_label"`
	QuestionInput  string `yaml:"question_input"`
	QuestionSelect string `yaml:"question_select"`
}

type Query struct {
	Keywords string `yaml:"keywords"`
	Location string `yaml:"location"`
	MaxPages int    `yaml:"max_pages"`
}

type Config struct {
	App struct {
		Port int `yaml:"port"`
	} `yaml:"app"`

	Portal struct {
		BaseURL        string    `yaml:"base_url"`
		SearchURL      string    `yaml:"search_url"` // template: {keywords} {location} {page}
		Username       string    `yaml:"username"`
		KeyringAccount string    `yaml:"keyring_account"`
		Headless       bool      `yaml:"headless"`
		DebuggerURL    string    `yaml:"debugger_url"`
		NavTimeoutSecs int       `yaml:"nav_timeout_seconds"`
		Selectors      Selectors `yaml:"selectors"`
		Queries        []Query   `yaml:"queries"`
		MaxApplyPerRun int       `yaml:"max_apply_per_run"`
		MaxApplyPerDay int       `yaml:"max_apply_per_day"`
	} `yaml:"portal"`

	Schedule struct {
		CycleMinutes int `yaml:"cycle_minutes"`
	} `yaml:"schedule"`

	Screening struct {
		MinKeywordScore int       `yaml:"min_keyword_score"`
		MinFitScore     int       `yaml:"min_fit_score"`
		TitleRules      []Rule    `yaml:"title_rules"`
		KeywordRules    []Rule    `yaml:"keyword_rules"`
		Penalties       []Penalty `yaml:"penalties"`
		LLM             struct {
			Enabled bool   `yaml:"enabled"`
			Model   string `yaml:"model"`
		} `yaml:"llm"`
	} `yaml:"screening"`

	Budget struct {
		DailyUSD       float64 `yaml:"daily_usd"`
		MonthlyUSD     float64 `yaml:"monthly_usd"`
		InputPerK      float64 `yaml:"input_usd_per_1k_tokens"`
		OutputPerK     float64 `yaml:"output_usd_per_1k_tokens"`
		RequestsPerMin int     `yaml:"requests_per_minute"`
	} `yaml:"budget"`

	Outreach struct {
		Enabled bool   `yaml:"enabled"`
		Tone    string `yaml:"tone"`
	} `yaml:"outreach"`

	Telegram struct {
		Enabled     bool  `yaml:"enabled"`
		ChatID      int64 `yaml:"chat_id"`
		PollSeconds int   `yaml:"poll_seconds"`
	} `yaml:"telegram"`

	Alerts struct {
		Enabled  bool   `yaml:"enabled"`
		IMAPHost string `yaml:"imap_host"`
		Username string `yaml:"username"`
		Mailbox  string `yaml:"mailbox"`
		// only links whose host contains this are treated as portal postings
		LinkHost string `yaml:"link_host"`
	} `yaml:"alerts"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) CycleInterval() time.Duration {
	if c.Schedule.CycleMinutes <= 0 {
		return 45 * time.Minute
	}
	return time.Duration(c.Schedule.CycleMinutes) * time.Minute
}

func (c Config) NavTimeout() time.Duration {
	if c.Portal.NavTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Portal.NavTimeoutSecs) * time.Second
}
