package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting of the service.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Chat      ChatConfig
	AI        AIConfig
	Emergency EmergencyConfig
}

// Load reads everything from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	emergency, err := loadEmergencyConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Log:       loadLogConfig(),
		Chat:      chat,
		AI:        ai,
		Emergency: emergency,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// ChatConfig bounds the conversation session.
type ChatConfig struct {
	// URL is the chat-completion streaming endpoint; empty means the
	// session is wired to this process's own /api/chat.
	URL    string
	APIKey string

	HistoryWindow   int
	CooldownDefault time.Duration
	WatchdogTimeout time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	window := 10
	if override, err := parseOptionalIntEnv("CHAT_HISTORY_WINDOW"); err != nil {
		return ChatConfig{}, err
	} else if override != nil && *override > 0 {
		window = *override
	}

	cooldown, err := parseDurationEnv("CHAT_COOLDOWN_DEFAULT", 15*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}

	watchdog, err := parseDurationEnv("CHAT_WATCHDOG_TIMEOUT", 2*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		URL:             strings.TrimSpace(os.Getenv("CHAT_URL")),
		APIKey:          strings.TrimSpace(os.Getenv("CHAT_API_KEY")),
		HistoryWindow:   window,
		CooldownDefault: cooldown,
		WatchdogTimeout: watchdog,
	}, nil
}

// AIConfig describes the upstream model behind the gateway endpoint.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("model credentials missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// EmergencyConfig carries the alerting policy.
type EmergencyConfig struct {
	DefaultNumber    string
	CountryCode      string
	NotifyURL        string
	NotifyAPIKey     string
	Scheme           string
	WebHost          string
	WebFallbackDelay time.Duration
	LocationTimeout  time.Duration
}

func loadEmergencyConfig() (EmergencyConfig, error) {
	fallbackDelay, err := parseDurationEnv("EMERGENCY_WEB_FALLBACK_DELAY", 500*time.Millisecond)
	if err != nil {
		return EmergencyConfig{}, err
	}

	locationTimeout, err := parseDurationEnv("EMERGENCY_LOCATION_TIMEOUT", 10*time.Second)
	if err != nil {
		return EmergencyConfig{}, err
	}

	return EmergencyConfig{
		DefaultNumber:    getEnvOrDefault("EMERGENCY_DEFAULT_NUMBER", "8778741264"),
		CountryCode:      getEnvOrDefault("EMERGENCY_COUNTRY_CODE", "91"),
		NotifyURL:        strings.TrimSpace(os.Getenv("EMERGENCY_NOTIFY_URL")),
		NotifyAPIKey:     strings.TrimSpace(os.Getenv("EMERGENCY_NOTIFY_API_KEY")),
		Scheme:           getEnvOrDefault("EMERGENCY_MESSAGING_SCHEME", "whatsapp"),
		WebHost:          getEnvOrDefault("EMERGENCY_MESSAGING_WEB_HOST", "wa.me"),
		WebFallbackDelay: fallbackDelay,
		LocationTimeout:  locationTimeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
