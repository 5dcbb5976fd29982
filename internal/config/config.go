// 환경변수 기반 설정 로딩
//
// 필수 환경변수 (하나라도 없으면 기동 실패):
//   - SLACK_BOT_TOKEN, SLACK_APP_TOKEN, SLACK_CHANNEL_ID
//   - DATADOG_API_KEY, DATADOG_APP_KEY
//   - AI_API_KEY
//
// 로컬 개발 시 .env 파일이 있으면 먼저 읽어들임

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Slack   SlackConfig
	Datadog DatadogConfig
	AI      AIConfig
	Poller  PollerConfig
	Server  ServerConfig
	Log     LogConfig
	RAG     RAGConfig
}

type SlackConfig struct {
	BotToken  string
	AppToken  string
	ChannelID string
}

type DatadogConfig struct {
	APIKey string
	AppKey string
	Site   string
}

type AIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

type PollerConfig struct {
	Interval time.Duration
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

type RAGConfig struct {
	MaxContextChars int
}

// MissingConfigError - 필수 환경변수 누락
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Keys, ", "))
}

func Load() (Config, error) {
	// .env 파일이 없으면 무시 (컨테이너 환경에서는 env로 주입)
	_ = godotenv.Load()

	interval, err := parseDuration("POLL_INTERVAL", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxChars, err := parseInt("RAG_MAX_CONTEXT_CHARS", 4000)
	if err != nil {
		return Config{}, err
	}

	level := getenv("LOG_LEVEL", "info")
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		level = "debug"
	}

	return Config{
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			AppToken:  os.Getenv("SLACK_APP_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Datadog: DatadogConfig{
			APIKey: os.Getenv("DATADOG_API_KEY"),
			AppKey: os.Getenv("DATADOG_APP_KEY"),
			Site:   getenv("DATADOG_SITE", "us5.datadoghq.com"),
		},
		AI: AIConfig{
			APIKey:         os.Getenv("AI_API_KEY"),
			Model:          getenv("AI_MODEL", "gemini-2.0-flash"),
			EmbeddingModel: getenv("AI_EMBEDDING_MODEL", "text-embedding-004"),
		},
		Poller: PollerConfig{
			Interval: interval,
		},
		Server: ServerConfig{
			Addr: lookupenv("HTTP_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level:  level,
			Format: getenv("LOG_FORMAT", "console"),
		},
		RAG: RAGConfig{
			MaxContextChars: maxChars,
		},
	}, nil
}

// Validate - 필수 값 누락 여부 체크 (누락된 키를 모두 모아서 반환)
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"SLACK_BOT_TOKEN", c.Slack.BotToken},
		{"SLACK_APP_TOKEN", c.Slack.AppToken},
		{"SLACK_CHANNEL_ID", c.Slack.ChannelID},
		{"DATADOG_API_KEY", c.Datadog.APIKey},
		{"DATADOG_APP_KEY", c.Datadog.AppKey},
		{"AI_API_KEY", c.AI.APIKey},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &MissingConfigError{Keys: missing}
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// 빈 문자열도 유효한 값으로 취급 (HTTP_ADDR="" 이면 서버 비활성화)
func lookupenv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}
