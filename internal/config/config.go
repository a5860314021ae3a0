// Package config loads the YAML configuration shared by the server and the terminal chat.
package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/llamachat/internal/services"
	"github.com/MegaGrindStone/llamachat/internal/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Defaults used when the configuration file is missing or leaves a field empty.
const (
	DefaultPort               = "5000"
	DefaultModel              = "llama3"
	DefaultLogLevel           = "info"
	DefaultSessionIdleTimeout = 30 * time.Minute
)

var (
	// ErrUnknownProvider is returned for an llm block naming a provider that is not supported.
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrModelRequired is returned for an llm block without a model.
	ErrModelRequired = errors.New("model is required")
	// ErrUnknownCache is returned for a cache block of an unsupported kind.
	ErrUnknownCache = errors.New("unknown cache kind")
)

type llmConfig interface {
	generator(logger zerolog.Logger) (services.Generator, error)
	model() string
	setModel(model string)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider   string              `yaml:"provider"`
	Model      string              `yaml:"model"`
	Parameters services.Parameters `yaml:"parameters"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	BaseURL       string `yaml:"baseURL"`
	APIKey        string `yaml:"apiKey"`
}

// RevealConfig tunes the typing animation.
type RevealConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// CacheConfig selects the response cache. Kind is one of "none", "bolt" or "redis".
type CacheConfig struct {
	Kind       string        `yaml:"kind"`
	Path       string        `yaml:"path"`
	MaxEntries int           `yaml:"maxEntries"`
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	TTL        time.Duration `yaml:"ttl"`
}

// Config is the whole configuration file.
type Config struct {
	Port               string        `yaml:"port"`
	LogLevel           string        `yaml:"logLevel"`
	LogFile            string        `yaml:"logFile"`
	FallbackMessage    string        `yaml:"fallbackMessage"`
	Warmup             bool          `yaml:"warmup"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
	Reveal             RevealConfig  `yaml:"reveal"`
	Cache              CacheConfig   `yaml:"cache"`
	LLM                llmConfig     `yaml:"llm"`
}

// Default returns the configuration used without a file: a local Ollama serving llama3.
func Default() Config {
	return Config{
		Port:               DefaultPort,
		LogLevel:           DefaultLogLevel,
		FallbackMessage:    services.DefaultFallbackMessage,
		Warmup:             true,
		SessionIdleTimeout: DefaultSessionIdleTimeout,
		Reveal:             RevealConfig{Interval: transcript.DefaultRevealInterval},
		Cache:              CacheConfig{Kind: "none", MaxEntries: services.DefaultCacheEntries},
		LLM: &ollamaConfig{BaseLLMConfig: BaseLLMConfig{
			Provider: "ollama",
			Model:    DefaultModel,
		}},
	}
}

// Dir returns the directory holding the configuration file and the cache database.
func Dir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "error getting user config dir")
	}
	return filepath.Join(cfgDir, "llamachat"), nil
}

// Load reads the file at path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "error opening config file")
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "error decoding config file")
	}
	return cfg, nil
}

// UnmarshalYAML decodes the file over the current values of c, so fields absent from the file keep
// their defaults. The llm block is decoded into the configuration type of its provider.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	rawConfig := struct {
		Port               string        `yaml:"port"`
		LogLevel           string        `yaml:"logLevel"`
		LogFile            string        `yaml:"logFile"`
		FallbackMessage    string        `yaml:"fallbackMessage"`
		Warmup             bool          `yaml:"warmup"`
		SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
		Reveal             RevealConfig  `yaml:"reveal"`
		Cache              CacheConfig   `yaml:"cache"`
		LLM                yaml.Node     `yaml:"llm"`
	}{
		Port:               c.Port,
		LogLevel:           c.LogLevel,
		LogFile:            c.LogFile,
		FallbackMessage:    c.FallbackMessage,
		Warmup:             c.Warmup,
		SessionIdleTimeout: c.SessionIdleTimeout,
		Reveal:             c.Reveal,
		Cache:              c.Cache,
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.LogFile = rawConfig.LogFile
	c.FallbackMessage = rawConfig.FallbackMessage
	c.Warmup = rawConfig.Warmup
	c.SessionIdleTimeout = rawConfig.SessionIdleTimeout
	c.Reveal = rawConfig.Reveal
	c.Cache = rawConfig.Cache

	if rawConfig.LLM.IsZero() {
		return nil
	}

	var base BaseLLMConfig
	if err := rawConfig.LLM.Decode(&base); err != nil {
		return err
	}

	var llm llmConfig
	switch base.Provider {
	case "", "ollama":
		llm = &ollamaConfig{BaseLLMConfig: BaseLLMConfig{Provider: "ollama", Model: DefaultModel}}
	case "openai":
		llm = &openAIConfig{BaseLLMConfig: BaseLLMConfig{Provider: "openai"}}
	default:
		return errors.Wrapf(ErrUnknownProvider, "provider %q", base.Provider)
	}

	if err := rawConfig.LLM.Decode(llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

// Generator builds the generator of the configured provider.
func (c Config) Generator(logger zerolog.Logger) (services.Generator, error) {
	if c.LLM == nil {
		return nil, errors.New("llm is not configured")
	}
	return c.LLM.generator(logger)
}

// Model returns the configured model name.
func (c Config) Model() string {
	if c.LLM == nil {
		return ""
	}
	return c.LLM.model()
}

// SetModel overrides the configured model name.
func (c Config) SetModel(model string) {
	if c.LLM != nil && model != "" {
		c.LLM.setModel(model)
	}
}

// SetHost overrides the host of an Ollama provider or the base URL of an OpenAI one.
func (c Config) SetHost(host string) {
	if host == "" {
		return
	}
	switch l := c.LLM.(type) {
	case *ollamaConfig:
		l.Host = host
	case *openAIConfig:
		l.BaseURL = host
	}
}

// ResponseCache opens the configured cache. It returns nil for kind "none". Relative bolt paths are
// resolved against dir.
func (c Config) ResponseCache(ctx context.Context, dir string) (services.ResponseCache, error) {
	switch c.Cache.Kind {
	case "", "none":
		return nil, nil
	case "bolt":
		path := c.Cache.Path
		if path == "" {
			path = "cache.db"
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		cache, err := services.NewBoltCache(path, c.Cache.MaxEntries)
		if err != nil {
			return nil, err
		}
		return cache, nil
	case "redis":
		password := c.Cache.Password
		if password == "" {
			password = os.Getenv("REDIS_PASSWORD")
		}
		cache, err := services.NewRedisCache(ctx, c.Cache.Addr, password, c.Cache.DB, c.Cache.TTL)
		if err != nil {
			return nil, err
		}
		return cache, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCache, "kind %q", c.Cache.Kind)
	}
}

// Logger builds the root logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.LogLevel != "" {
		l, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", c.LogLevel)
		}
		level = l
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func (o *ollamaConfig) generator(logger zerolog.Logger) (services.Generator, error) {
	if o.Model == "" {
		return nil, ErrModelRequired
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	ollama, err := services.NewOllama(host, o.Model, o.Parameters, logger)
	if err != nil {
		return nil, err
	}
	return ollama, nil
}

func (o *ollamaConfig) model() string { return o.Model }

func (o *ollamaConfig) setModel(model string) { o.Model = model }

func (o *openAIConfig) generator(logger zerolog.Logger) (services.Generator, error) {
	if o.Model == "" {
		return nil, ErrModelRequired
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(o.BaseURL, apiKey, o.Model, o.Parameters, logger), nil
}

func (o *openAIConfig) model() string { return o.Model }

func (o *openAIConfig) setModel(model string) { o.Model = model }
