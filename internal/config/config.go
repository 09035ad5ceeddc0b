package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Timezone string

	DBPath     string
	RawMailDir string
	InboxDir   string
	OutputDir  string

	CRMAPIBaseURL    string
	CRMAPIToken      string
	CRMRateLimitRPS  int
	CRMTimeoutMs     int
	CRMRetryAttempts int

	BackendBaseURL   string
	BackendLeadsPath string
	BackendTimeoutMs int

	StoresToRemove       []string
	MarketingSources     []string
	AttendanceStatuses   []string
	SchedulingStatuses   []string
	EvaluationProcedures []string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider    string
	MailListenerLabel       string
	MailListenerIntervalSec int
	MailListenerFetchMax    int
	MailListenerIngestBatch int
	MailListenerAutoExport  bool
	MailListenerAutoPush    bool

	MailSubjectFilter string
	MailSinceDays     int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "America/Sao_Paulo"),

		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		InboxDir:   getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CRMAPIBaseURL:    getEnv("CRM_API_BASE_URL", "https://crm.example.com/api/v1"),
		CRMAPIToken:      getEnv("CRM_API_TOKEN", ""),
		CRMRateLimitRPS:  getEnvInt("CRM_RATE_LIMIT_RPS", 5),
		CRMTimeoutMs:     getEnvInt("CRM_TIMEOUT_MS", 30000),
		CRMRetryAttempts: getEnvInt("CRM_RETRY_ATTEMPTS", 5),

		BackendBaseURL:   getEnv("BACKEND_BASE_URL", "http://localhost:8000"),
		BackendLeadsPath: getEnv("BACKEND_LEADS_PATH", "/mkt-leads/"),
		BackendTimeoutMs: getEnvInt("BACKEND_TIMEOUT_MS", 5000),

		StoresToRemove:   getEnvList("STORES_TO_REMOVE", []string{"Homologação", "Loja Teste", "Central"}),
		MarketingSources: getEnvList("MARKETING_SOURCES", []string{"Google Pesquisa", "Facebook Leads"}),
		AttendanceStatuses: getEnvList("STATUS_ATTENDANCE", []string{
			"Atendido", "Em atendimento", "Aguardando atendimento",
		}),
		SchedulingStatuses: getEnvList("STATUS_SCHEDULING", []string{
			"Agendado", "Confirmado", "Falta", "Cancelado",
		}),
		EvaluationProcedures: getEnvList("PROCEDURES_EVALUATION", []string{
			"Avaliação Estética", "Avaliação Facial", "Avaliação Corporal",
			"Avaliação Cirúrgica", "Avaliação Pró-Corpo",
		}),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:    getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:       getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec: getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:    getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerIngestBatch: getEnvInt("MAIL_LISTENER_INGEST_BATCH", 20),
		MailListenerAutoExport:  getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailListenerAutoPush:    getEnvBool("MAIL_LISTENER_AUTO_PUSH", false),

		MailSubjectFilter: getEnv("MAIL_SUBJECT_FILTER", "Relatório"),
		MailSinceDays:     getEnvInt("MAIL_SINCE_DAYS", 3),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// BackendLeadsURL joins the backend base URL with the leads endpoint path.
func (c Config) BackendLeadsURL() string {
	return strings.TrimRight(c.BackendBaseURL, "/") + "/" + strings.TrimLeft(c.BackendLeadsPath, "/")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvList reads a comma separated list. An empty variable keeps the fallback.
func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
