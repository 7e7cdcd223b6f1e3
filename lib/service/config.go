package service

import (
	"fmt"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseUri             string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	DatadogAgentUrl         string  `envconfig:"DATADOG_AGENT_URL"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	LogLevel                string  `envconfig:"LOG_LEVEL" default:"debug"`
	JWTSecret               []byte  `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenExpiry    int     `envconfig:"JWT_ACCESS_EXPIRY" default:"172800"` // in seconds, default 2 days
	AdminToken              string  `envconfig:"ADMIN_TOKEN"`
	Host                    string  `envconfig:"HOST" default:"localhost:3000"`
	Port                    int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus        bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	WebhookUrl              string  `envconfig:"WEBHOOK_URL"`
	RabbitMQUri             string  `envconfig:"RABBITMQ_URI"`
	RabbitMQEventExchange   string  `envconfig:"RABBITMQ_EVENT_EXCHANGE" default:"finance_events"`
	Telegram                TelegramConfig
	LLM                     LLMConfig
}

type TelegramConfig struct {
	BotToken          string    `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	ApiUrl            string    `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
	WebhookSecret     string    `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	ServerEndpoint    string    `envconfig:"SERVER_ENDPOINT"`
	RegisterRetries   uint64    `envconfig:"TELEGRAM_REGISTER_RETRIES" default:"3"`
	AllowedChatIDs    ChatIDSet `envconfig:"ALLOWED_CHAT_IDS"`
	SendTimeoutSecond int       `envconfig:"TELEGRAM_SEND_TIMEOUT" default:"15"`
}

type LLMConfig struct {
	ApiKey          string  `envconfig:"OPEN_ROUTER_API_KEY" required:"true"`
	BaseUrl         string  `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	Model           string  `envconfig:"LLM_MODEL" default:"openai/gpt-4o-mini"`
	Temperature     float32 `envconfig:"LLM_TEMPERATURE" default:"0.2"`
	TimeoutSeconds  int     `envconfig:"LLM_TIMEOUT" default:"90"`
	MaxSteps        int     `envconfig:"AGENT_MAX_STEPS" default:"8"`
	DefaultCurrency string  `envconfig:"DEFAULT_CURRENCY" default:"BRL"`
}

// WebhookPath is where Telegram delivers updates.
const WebhookPath = "/api/v1/webhook/telegram"

// WebhookUrl is the public url handed to Telegram's setWebhook, empty when no
// server endpoint is configured.
func (c TelegramConfig) WebhookUrl() string {
	if c.ServerEndpoint == "" {
		return ""
	}
	return strings.TrimRight(c.ServerEndpoint, "/") + WebhookPath
}

// envconfig splits slices on commas; the chat id list uses semicolons like the
// other list-valued settings, so it gets its own decoder.

type ChatIDSet map[int64]struct{}

func (s *ChatIDSet) Decode(value string) error {
	set := ChatIDSet{}
	for _, item := range strings.Split(value, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id: %q", item)
		}
		set[id] = struct{}{}
	}
	*s = set
	return nil
}

// Allows reports whether chatID may talk to the bot. An empty set allows everyone.
func (s ChatIDSet) Allows(chatID int64) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[chatID]
	return ok
}
