package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credentials holds upstream API keys. It redacts itself when logged.
type Credentials struct {
	ClaudeAPIKey string
	TavilyAPIKey string
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("claude_api_key_set", c.ClaudeAPIKey != ""),
		slog.Bool("tavily_api_key_set", c.TavilyAPIKey != ""),
	)
}

// Config is built once at startup and passed to components by pointer.
// Nothing reads the environment after Load returns.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogFile    string
	LogFormat  string

	OCRBackend     string
	TesseractPath  string
	TessdataPrefix string
	OCRLanguage    string

	AgentBackend       string
	ClaudeModel        string
	ClaudeMaxTokens    int
	OllamaHost         string
	OllamaModel        string
	AgentMaxToolRounds int

	LookupBackend    string
	TavilyMaxResults int

	AnalysisTimeout       time.Duration
	MaxConcurrentAnalyses int64

	UploadDir      string
	MaxUploadBytes int64

	Credentials Credentials
}

// Load reads the optional key-value file named by CONFIG_FILE (YAML or JSON),
// lets environment variables override it, and fills in defaults.
func Load() (*Config, error) {
	src := source{file: map[string]string{}}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{
		ListenAddr: src.get("LISTEN_ADDR", ":8080"),
		LogLevel:   src.get("LOG_LEVEL", "info"),
		LogFile:    src.get("LOG_FILE", ""),
		LogFormat:  src.get("LOG_FORMAT", "json"),

		OCRBackend:     src.get("OCR_BACKEND", "tesseract"),
		TesseractPath:  src.get("TESSERACT_PATH", "tesseract"),
		TessdataPrefix: src.get("TESSDATA_PREFIX", ""),
		OCRLanguage:    src.get("OCR_LANGUAGE", "eng"),

		AgentBackend: src.get("AGENT_BACKEND", "claude"),
		ClaudeModel:  src.get("CLAUDE_MODEL", "claude-opus-4-6"),
		OllamaHost:   src.get("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:  src.get("OLLAMA_MODEL", "llama3.1"),

		LookupBackend: src.get("LOOKUP_BACKEND", "tavily"),

		UploadDir: src.get("UPLOAD_DIR", filepath.Join(os.TempDir(), "ingredientcheck")),

		Credentials: Credentials{
			ClaudeAPIKey: src.get("CLAUDE_API_KEY", ""),
			TavilyAPIKey: src.get("TAVILY_API_KEY", ""),
		},
	}

	var err error
	if cfg.ClaudeMaxTokens, err = src.getInt("CLAUDE_MAX_TOKENS", 2048); err != nil {
		return nil, err
	}
	if cfg.AgentMaxToolRounds, err = src.getInt("AGENT_MAX_TOOL_ROUNDS", 8); err != nil {
		return nil, err
	}
	if cfg.TavilyMaxResults, err = src.getInt("TAVILY_MAX_RESULTS", 5); err != nil {
		return nil, err
	}
	if cfg.AnalysisTimeout, err = src.getDuration("ANALYSIS_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	maxConcurrent, err := src.getInt("MAX_CONCURRENT_ANALYSES", 4)
	if err != nil {
		return nil, err
	}
	cfg.MaxConcurrentAnalyses = int64(maxConcurrent)
	maxUpload, err := src.getInt("MAX_UPLOAD_BYTES", 20*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.OCRBackend {
	case "tesseract", "cli":
	default:
		return fmt.Errorf("unknown OCR_BACKEND %q (want tesseract or cli)", c.OCRBackend)
	}
	switch c.AgentBackend {
	case "claude":
		if c.Credentials.ClaudeAPIKey == "" {
			return fmt.Errorf("CLAUDE_API_KEY is required when AGENT_BACKEND=claude")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown AGENT_BACKEND %q (want claude or ollama)", c.AgentBackend)
	}
	switch c.LookupBackend {
	case "tavily":
		if c.Credentials.TavilyAPIKey == "" {
			return fmt.Errorf("TAVILY_API_KEY is required when LOOKUP_BACKEND=tavily")
		}
	case "wikipedia", "none":
	default:
		return fmt.Errorf("unknown LOOKUP_BACKEND %q (want tavily, wikipedia or none)", c.LookupBackend)
	}
	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be > 0 (got %s)", c.AnalysisTimeout)
	}
	if c.MaxConcurrentAnalyses <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_ANALYSES must be > 0 (got %d)", c.MaxConcurrentAnalyses)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0 (got %d)", c.MaxUploadBytes)
	}
	if c.ClaudeMaxTokens <= 0 {
		return fmt.Errorf("CLAUDE_MAX_TOKENS must be > 0 (got %d)", c.ClaudeMaxTokens)
	}
	if c.AgentMaxToolRounds < 0 {
		return fmt.Errorf("AGENT_MAX_TOOL_ROUNDS must be >= 0 (got %d)", c.AgentMaxToolRounds)
	}
	if c.TavilyMaxResults <= 0 {
		return fmt.Errorf("TAVILY_MAX_RESULTS must be > 0 (got %d)", c.TavilyMaxResults)
	}
	return nil
}

// readFile parses a flat key-value document. JSON is valid YAML, so the
// config.json layout of older deployments loads unchanged.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			values[k] = val
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: key %q must be a scalar", path, k)
		default:
			values[k] = fmt.Sprint(val)
		}
	}
	return values, nil
}

type source struct {
	file map[string]string
}

func (s source) get(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	if val, exists := s.file[key]; exists {
		return val
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) (int, error) {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func (s source) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}
