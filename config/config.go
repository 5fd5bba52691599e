package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"
)

//go:embed android_workflow.yml
var AndroidWorkflowYAML string

type Config struct {
	Port         string
	GeminiAPIKey string
	DefaultModel string
	OllamaURL    string
	DBPath       string
	Github       GithubDefaults

	LocalModelHints   []string // extra model-name fragments treated as local
	AffirmativeTokens []string // extra replies accepted as plan approval
	BuildPollInterval time.Duration
	BuildPollAttempts int
}

type GithubDefaults struct {
	Token string
	Owner string
	Repo  string
}

func GetConfig() Config {
	return Config{
		Port:         getEnv("PORT", "9090"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DefaultModel: getEnv("DEFAULT_MODEL", "gemini-3-flash-preview"),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		DBPath:       getEnv("DB_PATH", "./data/badger"),
		Github: GithubDefaults{
			Token: getEnv("GITHUB_TOKEN", ""),
			Owner: getEnv("GITHUB_OWNER", ""),
			Repo:  getEnv("GITHUB_REPO", ""),
		},
		LocalModelHints:   splitList(getEnv("LOCAL_MODEL_HINTS", "")),
		AffirmativeTokens: splitList(getEnv("AFFIRMATIVE_TOKENS", "ha")),
		BuildPollInterval: getDuration("BUILD_POLL_INTERVAL", 15*time.Second),
		BuildPollAttempts: getInt("BUILD_POLL_ATTEMPTS", 40),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
