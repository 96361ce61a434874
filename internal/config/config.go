package config

import (
	"log"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

// EmailMode controls when query log digests are delivered.
type EmailMode string

const (
	EmailModeOff       EmailMode = "off"
	EmailModeImmediate EmailMode = "immediate"
	EmailModeDaily     EmailMode = "daily"
)

// Transport selects how digests leave the process.
type Transport string

const (
	TransportSMTP     Transport = "smtp"
	TransportGmail    Transport = "gmail"
	TransportTelegram Transport = "telegram"
)

const (
	DefaultSubject      = "Kairo — user query log"
	DefaultMaxBytes     = 1048576
	DefaultDigestHour   = 9
	DefaultDigestMinute = 0
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"3000"`
	DataRoot string `env:"DATA_ROOT" envDefault:"data"`

	// Query log. Flags and numbers stay raw so that garbage falls back to defaults
	// instead of aborting start-up.
	QueryLogEnabled       string `env:"QUERY_LOG_ENABLED"`
	QueryLogEmailMode     string `env:"QUERY_LOG_EMAIL_MODE" envDefault:"off"`
	QueryLogDir           string `env:"QUERY_LOG_DIR"`
	QueryLogAdminToken    string `env:"QUERY_LOG_ADMIN_TOKEN"`
	QueryLogTransport     string `env:"QUERY_LOG_EMAIL_TRANSPORT" envDefault:"smtp"`
	QueryLogEmailTo       string `env:"QUERY_LOG_EMAIL_TO"`
	QueryLogEmailFrom     string `env:"QUERY_LOG_EMAIL_FROM"`
	QueryLogMaxBytes      string `env:"QUERY_LOG_EMAIL_MAX_BYTES"`
	QueryLogHour          string `env:"QUERY_LOG_EMAIL_HOUR"`
	QueryLogMinute        string `env:"QUERY_LOG_EMAIL_MINUTE"`
	QueryLogFireAndForget string `env:"QUERY_LOG_EMAIL_FIRE_AND_FORGET"`
	QueryLogSubject       string `env:"QUERY_LOG_EMAIL_SUBJECT"`
	QueryLogSendTimeout   string `env:"QUERY_LOG_EMAIL_TIMEOUT"`
	ContactEmail          string `env:"CONTACT_EMAIL"`

	// SMTP
	SMTPHost   string `env:"SMTP_HOST"`
	SMTPPort   string `env:"SMTP_PORT" envDefault:"587"`
	SMTPSecure string `env:"SMTP_SECURE" envDefault:"false"`
	SMTPUser   string `env:"SMTP_USER"`
	SMTPPass   string `env:"SMTP_PASS"`
	SMTPFrom   string `env:"SMTP_FROM"`

	// Gmail API (optional transport)
	GmailClientID     string `env:"GMAIL_CLIENT_ID"`
	GmailClientSecret string `env:"GMAIL_CLIENT_SECRET"`
	GmailRefreshToken string `env:"GMAIL_REFRESH_TOKEN"`

	// Telegram (optional transport)
	TelegramBotToken     string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramDigestChatID int64  `env:"TELEGRAM_DIGEST_CHAT_ID"`

	// LLM settings
	LLMProvider          LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey         string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL        string      `env:"OPENAI_BASE_URL"`
	OpenAIModel          string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIEmbeddingModel string      `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	YandexOAuthToken     string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID       string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts and retrieval
	SystemPromptPath string  `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`
	CorpusDir        string  `env:"CORPUS_DIR"`
	ChatTemperature  float32 `env:"CHAT_TEMPERATURE" envDefault:"0.7"`
	ChatTopK         int     `env:"CHAT_TOP_K" envDefault:"5"`
	ChatHistoryTurns int     `env:"CHAT_HISTORY_TURNS" envDefault:"6"`
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Parse reads the process environment without exiting on failure.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Enabled reports whether query logging is switched on.
func (c *Config) Enabled() bool { return ParseFlag(c.QueryLogEnabled, false) }

func (c *Config) EmailMode() EmailMode {
	switch m := EmailMode(strings.ToLower(strings.TrimSpace(c.QueryLogEmailMode))); m {
	case EmailModeImmediate, EmailModeDaily, EmailModeOff:
		return m
	}
	return EmailModeOff
}

func (c *Config) Transport() Transport {
	switch t := Transport(strings.ToLower(strings.TrimSpace(c.QueryLogTransport))); t {
	case TransportGmail, TransportTelegram:
		return t
	}
	return TransportSMTP
}

// LogDir is QUERY_LOG_DIR made absolute, or <DATA_ROOT>/query-logs.
func (c *Config) LogDir() string {
	if override := strings.TrimSpace(c.QueryLogDir); override != "" {
		if abs, err := filepath.Abs(override); err == nil {
			return abs
		}
		return override
	}
	return filepath.Join(c.DataRoot, "query-logs")
}

func (c *Config) CorpusPath() string {
	if dir := strings.TrimSpace(c.CorpusDir); dir != "" {
		return dir
	}
	return filepath.Join(c.DataRoot, "corpus")
}

func (c *Config) AdminToken() string { return strings.TrimSpace(c.QueryLogAdminToken) }

func (c *Config) FireAndForget() bool { return ParseFlag(c.QueryLogFireAndForget, true) }

func (c *Config) MaxBytes() int64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(c.QueryLogMaxBytes), 64)
	if err != nil || math.IsNaN(n) || n <= 0 || n > float64(1<<53) {
		return DefaultMaxBytes
	}
	return int64(n)
}

// DigestTime returns the local hour and minute of the daily digest, clamped to valid ranges.
func (c *Config) DigestTime() (hour, minute int) {
	return clampInt(c.QueryLogHour, DefaultDigestHour, 0, 23), clampInt(c.QueryLogMinute, DefaultDigestMinute, 0, 59)
}

func (c *Config) Subject() string {
	if s := strings.TrimSpace(c.QueryLogSubject); s != "" {
		return s
	}
	return DefaultSubject
}

func (c *Config) SendTimeout() time.Duration {
	raw := strings.TrimSpace(c.QueryLogSendTimeout)
	if raw == "" {
		return 30 * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 30 * time.Second
}

// Recipient resolves QUERY_LOG_EMAIL_TO, then CONTACT_EMAIL.
func (c *Config) Recipient() string {
	return firstNonEmpty(c.QueryLogEmailTo, c.ContactEmail)
}

// Sender resolves QUERY_LOG_EMAIL_FROM, then SMTP_FROM, then SMTP_USER.
func (c *Config) Sender() string {
	return firstNonEmpty(c.QueryLogEmailFrom, c.SMTPFrom, c.SMTPUser)
}

// SMTP is the resolved mail transport configuration.
type SMTP struct {
	Host   string
	Port   int
	Secure bool
	User   string
	Pass   string
}

// SMTPSettings returns the transport settings and whether they are complete.
func (c *Config) SMTPSettings() (SMTP, bool) {
	s := SMTP{
		Host:   strings.TrimSpace(c.SMTPHost),
		User:   strings.TrimSpace(c.SMTPUser),
		Pass:   strings.TrimSpace(c.SMTPPass),
		Secure: strings.EqualFold(strings.TrimSpace(c.SMTPSecure), "true"),
	}
	port, err := strconv.Atoi(strings.TrimSpace(c.SMTPPort))
	if err != nil || port <= 0 {
		return s, false
	}
	s.Port = port
	return s, s.Host != "" && s.User != "" && s.Pass != ""
}

// ParseFlag accepts 1/true/yes/y/on and 0/false/no/n/off; anything else yields def.
func ParseFlag(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func clampInt(raw string, def, lo, hi int) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) {
		return def
	}
	f = math.Max(float64(lo), math.Min(float64(hi), f))
	return int(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
