package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort    string
	DatabaseURL string
	RedisURL    string

	TelegramBotToken string

	OpenAIAPIKey string
	OpenAIModel  string

	DefaultTicker   string
	SessionTTLMins  int
	SweepPollSecs   int
	MarketDataURL   string
	AllowedOrigins  []string
	SSHEnabled      bool
	SSHBind         string
	SSHPort         int
	SSHHostKeyPath  string
	MCPTransport    string
	MCPHTTPEnabled  bool
	MCPHTTPBind     string
	MCPHTTPPort     int
	MCPAuthToken    string
	MCPTimeoutSecs  int
	MCPRatePerMin   int
	OTLPEndpoint    string
	ChartWidthPx    int
	ChartHeightPx   int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
	}

	cfg.HTTPPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, runs and transcripts will not persist")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, Telegram bot disabled")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, chat extraction disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.DefaultTicker = strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_TICKER")))
	if cfg.DefaultTicker == "" {
		cfg.DefaultTicker = "SPY"
	}

	cfg.SessionTTLMins = 120
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLMins = n
		}
	}

	cfg.SweepPollSecs = 300
	if v := strings.TrimSpace(os.Getenv("SWEEP_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepPollSecs = n
		}
	}

	cfg.MarketDataURL = strings.TrimSpace(os.Getenv("MARKET_DATA_URL"))

	origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if origins == "" {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	cfg.SSHEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("SSH_ENABLED")), "true")
	cfg.SSHBind = strings.TrimSpace(os.Getenv("SSH_BIND"))
	if cfg.SSHBind == "" {
		cfg.SSHBind = "0.0.0.0"
	}
	cfg.SSHPort = 2222
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}
	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/backtestgpt_host_key"
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")
	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}
	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}
	cfg.MCPTimeoutSecs = 30
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPTimeoutSecs = n
		}
	}
	cfg.MCPRatePerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRatePerMin = n
		}
	}

	cfg.ChartWidthPx = 900
	if v := strings.TrimSpace(os.Getenv("CHART_WIDTH_PX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChartWidthPx = n
		}
	}
	cfg.ChartHeightPx = 400
	if v := strings.TrimSpace(os.Getenv("CHART_HEIGHT_PX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChartHeightPx = n
		}
	}

	return cfg
}
