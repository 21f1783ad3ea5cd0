package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-legal-extractor/internal/cache"
	"github.com/a3tai/mcp-legal-extractor/internal/llm"
	"github.com/a3tai/mcp-legal-extractor/internal/ocr"
	"github.com/a3tai/mcp-legal-extractor/internal/postprocess"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort               = 8080
	DefaultHost               = "127.0.0.1"
	DefaultLogLevel           = "info"
	DefaultMaxFileSize        = 100 * 1024 * 1024 // 100MB
	DefaultMaxPages           = 10
	DefaultChunkSizeTokens    = 4000
	DefaultChunkOverlapTokens = 400
	DefaultMinCharsPerPage    = 100
	DefaultLLMTimeout         = 30 * time.Second

	// EnvPrefix prefixes every environment variable
	EnvPrefix = "LEGAL_EXTRACT"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the legal extraction server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document storage
	PDFDirectory string
	MaxFileSize  int64 // Maximum PDF file size in bytes

	// Pipeline
	MaxPagesDefault    int
	ChunkSizeTokens    int
	ChunkOverlapTokens int
	ChunkConcurrency   int
	MinCharsPerPage    int
	ArtifactCorrection string
	SchemaDir          string

	// LLM providers
	LLMTimeout        time.Duration
	LLMPriority       []string
	PreferredProvider string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	DeepSeekAPIKey    string
	OpenAIModel       string
	AnthropicModel    string
	DeepSeekModel     string
	UseMockLLM        bool

	// OCR
	OCRBackend          string
	OCRLanguage         string
	OCRDPI              int
	DocumentAIProject   string
	DocumentAILocation  string
	DocumentAIProcessor string

	// Cache
	CacheBackend  string
	CachePath     string
	CacheCapacity int

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:               ModeStdio, // Default to stdio mode for MCP compatibility
		Host:               DefaultHost,
		Port:               DefaultPort,
		PDFDirectory:       currentDir,
		MaxFileSize:        DefaultMaxFileSize,
		MaxPagesDefault:    DefaultMaxPages,
		ChunkSizeTokens:    DefaultChunkSizeTokens,
		ChunkOverlapTokens: DefaultChunkOverlapTokens,
		MinCharsPerPage:    DefaultMinCharsPerPage,
		ArtifactCorrection: string(postprocess.ModeAlways),
		LLMTimeout:         DefaultLLMTimeout,
		LLMPriority:        append([]string(nil), llm.DefaultPriority...),
		OCRBackend:         ocr.BackendTesseract,
		OCRLanguage:        "eng",
		OCRDPI:             300,
		DocumentAILocation: "us",
		CacheBackend:       cache.BackendMemory,
		Version:            "1.0.0",
		ServerName:         "mcp-legal-extractor",
		LogLevel:           DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	RegisterFlags(pflag.CommandLine, cfg)
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	return Load(viper.GetViper(), pflag.CommandLine)
}

// Load binds fs and the environment to v and builds a validated config.
// Flags set explicitly win over environment variables, which win over the
// flag defaults.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	setupViperEnvironment(v)
	bindFlagsToViper(v, fs)

	cfg := DefaultConfig()
	populateConfigFromViper(v, cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables
func setupViperEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Provider keys are also read from their conventional variables
	_ = v.BindEnv("openai_api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("deepseek_api_key", EnvPrefix+"_DEEPSEEK_API_KEY", "DEEPSEEK_API_KEY")
}

// RegisterFlags defines every configuration flag on fs with cfg's values as
// defaults
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP (SSE) server")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("dir", cfg.PDFDirectory, "Directory containing the PDF documents")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")

	fs.Int("max-pages-default", cfg.MaxPagesDefault, "Pages read when the full document is not requested")
	fs.Int("chunk-size-tokens", cfg.ChunkSizeTokens, "Token budget per chunk")
	fs.Int("chunk-overlap-tokens", cfg.ChunkOverlapTokens, "Tokens carried into the next chunk")
	fs.Int("chunk-concurrency", cfg.ChunkConcurrency, "Parallel chunk extractions (0 or 1 is sequential)")
	fs.Int("min-chars-per-page", cfg.MinCharsPerPage, "Average characters per page above which OCR is skipped")
	fs.String("artifact-correction", cfg.ArtifactCorrection, "Scan artifact correction: always, ocr_only or off")
	fs.String("schema-dir", cfg.SchemaDir, "Directory of additional YAML schema templates")

	fs.Duration("llm-timeout", cfg.LLMTimeout, "Timeout for a single LLM call")
	fs.String("llm-priority", strings.Join(cfg.LLMPriority, ","), "Comma separated provider priority")
	fs.String("preferred-provider", cfg.PreferredProvider, "Provider tried first regardless of priority")
	fs.String("openai-api-key", cfg.OpenAIAPIKey, "OpenAI API key")
	fs.String("anthropic-api-key", cfg.AnthropicAPIKey, "Anthropic API key")
	fs.String("deepseek-api-key", cfg.DeepSeekAPIKey, "DeepSeek API key")
	fs.String("openai-model", cfg.OpenAIModel, "OpenAI model (default gpt-4)")
	fs.String("anthropic-model", cfg.AnthropicModel, "Anthropic model (default claude-3-sonnet-20240229)")
	fs.String("deepseek-model", cfg.DeepSeekModel, "DeepSeek model (default deepseek-chat)")
	fs.Bool("use-mock-llm", cfg.UseMockLLM, "Use the offline mock provider instead of real backends")

	fs.String("ocr-backend", cfg.OCRBackend, "OCR backend: tesseract, documentai or none")
	fs.String("ocr-language", cfg.OCRLanguage, "Tesseract language")
	fs.Int("ocr-dpi", cfg.OCRDPI, "Rasterization resolution for OCR")
	fs.String("documentai-project", cfg.DocumentAIProject, "Google Cloud project of the Document AI processor")
	fs.String("documentai-location", cfg.DocumentAILocation, "Document AI processor location")
	fs.String("documentai-processor", cfg.DocumentAIProcessor, "Document AI processor id")

	fs.String("cache-backend", cfg.CacheBackend, "Result cache: memory or sqlite")
	fs.String("cache-path", cfg.CachePath, "SQLite cache file (sqlite backend only)")
	fs.Int("cache-capacity", cfg.CacheCapacity, "Maximum cached results in memory (0 is unbounded)")
}

// bindFlagsToViper binds every flag under its underscored key
func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(flagKey(f.Name), f)
	})
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Legal Extractor - A Model Context Protocol server for extracting fields from legal PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                        # stdio mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs --use-mock-llm         # offline run\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081   # SSE server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every option can be set as %s_<OPTION>, e.g. %s_CHUNK_SIZE_TOKENS.\n", EnvPrefix, EnvPrefix)
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY, ANTHROPIC_API_KEY and DEEPSEEK_API_KEY are also read.\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.PDFDirectory = v.GetString("dir")
	cfg.LogLevel = strings.ToLower(v.GetString("loglevel"))
	cfg.MaxFileSize = v.GetInt64("maxfilesize")

	cfg.MaxPagesDefault = v.GetInt("max_pages_default")
	cfg.ChunkSizeTokens = v.GetInt("chunk_size_tokens")
	cfg.ChunkOverlapTokens = v.GetInt("chunk_overlap_tokens")
	cfg.ChunkConcurrency = v.GetInt("chunk_concurrency")
	cfg.MinCharsPerPage = v.GetInt("min_chars_per_page")
	cfg.ArtifactCorrection = v.GetString("artifact_correction")
	cfg.SchemaDir = v.GetString("schema_dir")

	cfg.LLMTimeout = v.GetDuration("llm_timeout")
	cfg.LLMPriority = splitList(v.GetString("llm_priority"))
	cfg.PreferredProvider = v.GetString("preferred_provider")
	cfg.OpenAIAPIKey = v.GetString("openai_api_key")
	cfg.AnthropicAPIKey = v.GetString("anthropic_api_key")
	cfg.DeepSeekAPIKey = v.GetString("deepseek_api_key")
	cfg.OpenAIModel = v.GetString("openai_model")
	cfg.AnthropicModel = v.GetString("anthropic_model")
	cfg.DeepSeekModel = v.GetString("deepseek_model")
	cfg.UseMockLLM = v.GetBool("use_mock_llm")

	cfg.OCRBackend = v.GetString("ocr_backend")
	cfg.OCRLanguage = v.GetString("ocr_language")
	cfg.OCRDPI = v.GetInt("ocr_dpi")
	cfg.DocumentAIProject = v.GetString("documentai_project")
	cfg.DocumentAILocation = v.GetString("documentai_location")
	cfg.DocumentAIProcessor = v.GetString("documentai_processor")

	cfg.CacheBackend = v.GetString("cache_backend")
	cfg.CachePath = v.GetString("cache_path")
	cfg.CacheCapacity = v.GetInt("cache_capacity")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks if the configuration is valid. Errors name the offending key.
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port range only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("dir: PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("dir: cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("dir: cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maxfilesize: maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("loglevel: invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	return c.validateCache()
}

func (c *Config) validatePipeline() error {
	if c.MaxPagesDefault <= 0 {
		return errors.New("max_pages_default must be positive")
	}
	if c.ChunkSizeTokens <= 0 {
		return errors.New("chunk_size_tokens must be positive")
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkSizeTokens {
		return fmt.Errorf("chunk_overlap_tokens must be between 0 and chunk_size_tokens (%d)", c.ChunkSizeTokens)
	}
	if c.ChunkConcurrency < 0 {
		return errors.New("chunk_concurrency cannot be negative")
	}
	if c.MinCharsPerPage <= 0 {
		return errors.New("min_chars_per_page must be positive")
	}
	if _, err := postprocess.ParseMode(c.ArtifactCorrection); err != nil {
		return fmt.Errorf("artifact_correction: %w", err)
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.LLMTimeout <= 0 {
		return errors.New("llm_timeout must be positive")
	}
	known := map[string]bool{
		llm.ProviderOpenAI:    true,
		llm.ProviderAnthropic: true,
		llm.ProviderDeepSeek:  true,
		llm.ProviderMock:      true,
	}
	for _, name := range c.LLMPriority {
		if !known[name] {
			return fmt.Errorf("llm_priority: unknown provider %q", name)
		}
	}
	if c.PreferredProvider != "" && !known[c.PreferredProvider] {
		return fmt.Errorf("preferred_provider: unknown provider %q", c.PreferredProvider)
	}
	return nil
}

func (c *Config) validateOCR() error {
	switch c.OCRBackend {
	case ocr.BackendTesseract:
		if c.OCRDPI <= 0 {
			return errors.New("ocr_dpi must be positive")
		}
	case ocr.BackendDocumentAI:
		if c.DocumentAIProject == "" || c.DocumentAIProcessor == "" {
			return errors.New("documentai_project and documentai_processor are required for the documentai backend")
		}
	case ocr.BackendNone:
	default:
		return fmt.Errorf("ocr_backend: must be one of tesseract, documentai, none (got %q)", c.OCRBackend)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.CacheBackend {
	case cache.BackendMemory:
	case cache.BackendSQLite:
		if c.CachePath == "" {
			return errors.New("cache_path is required for the sqlite cache backend")
		}
	default:
		return fmt.Errorf("cache_backend: must be memory or sqlite (got %q)", c.CacheBackend)
	}
	if c.CacheCapacity < 0 {
		return errors.New("cache_capacity cannot be negative")
	}
	return nil
}

// Providers returns the LLM provider settings
func (c *Config) Providers() llm.ProvidersConfig {
	return llm.ProvidersConfig{
		OpenAIAPIKey:    c.OpenAIAPIKey,
		AnthropicAPIKey: c.AnthropicAPIKey,
		DeepSeekAPIKey:  c.DeepSeekAPIKey,
		OpenAIModel:     c.OpenAIModel,
		AnthropicModel:  c.AnthropicModel,
		DeepSeekModel:   c.DeepSeekModel,
		Timeout:         c.LLMTimeout,
		UseMock:         c.UseMockLLM,
	}
}

// OCR returns the OCR backend settings
func (c *Config) OCR() ocr.Config {
	return ocr.Config{
		Backend: c.OCRBackend,
		Tesseract: ocr.TesseractConfig{
			DPI:      c.OCRDPI,
			Language: c.OCRLanguage,
		},
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:   c.DocumentAIProject,
			Location:    c.DocumentAILocation,
			ProcessorID: c.DocumentAIProcessor,
		},
	}
}

// Cache returns the cache backend settings
func (c *Config) Cache() cache.Config {
	return cache.Config{
		Backend:  c.CacheBackend,
		Path:     c.CachePath,
		Capacity: c.CacheCapacity,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. API keys are
// reported as set or unset only.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"LLMPriority: %v, Keys: openai=%t anthropic=%t deepseek=%t, Mock: %t, OCR: %s, Cache: %s}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.LLMPriority, llm.IsConfiguredKey(c.OpenAIAPIKey), llm.IsConfiguredKey(c.AnthropicAPIKey),
		llm.IsConfiguredKey(c.DeepSeekAPIKey), c.UseMockLLM, c.OCRBackend, c.CacheBackend)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
