package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type MeaningsConfig struct {
	Prompt          string   `toml:"prompt"`
	Language        string   `toml:"language" validate:"required"`
	MaxMeanings     int      `toml:"max_meanings" validate:"min=1,max=10"`
	GenerateTimeout Duration `toml:"generate_timeout"`
}

type LLMConfig struct {
	Provider    string  `toml:"provider" validate:"required,oneof=openai ollama claude gemini"`
	Model       string  `toml:"model" validate:"required"`
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	System      string  `toml:"system"`
	Temperature float32 `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
}

type MemgraphConfig struct {
	URI            string   `toml:"uri"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	ConnectTimeout Duration `toml:"connect_timeout"`
}

type StoreConfig struct {
	Driver string `toml:"driver" validate:"oneof=memory memgraph"`
}

type EncyclopediaConfig struct {
	SearchURL   string   `toml:"search_url" validate:"required,url"`
	ArticleURL  string   `toml:"article_url" validate:"required,url"`
	Limit       int      `toml:"limit" validate:"min=1,max=50"`
	RatePerSec  float64  `toml:"rate_per_sec" validate:"gt=0"`
	Timeout     Duration `toml:"timeout"`
	UserAgent   string   `toml:"user_agent"`
	MaxFailures uint32   `toml:"max_failures"`
}

type SyncConfig struct {
	Concurrency int      `toml:"concurrency" validate:"min=1"`
	Timeout     Duration `toml:"timeout"`
}

type ServerConfig struct {
	Port         string   `toml:"port"`
	AllowOrigins []string `toml:"allow_origins"`
}

type LogConfig struct {
	Mode string `toml:"mode"`
}

// AttributeOption is one attribute offered for a word, with its selectable values.
type AttributeOption struct {
	Word   string   `toml:"word" json:"-" validate:"required"`
	Name   string   `toml:"name" json:"name" validate:"required"`
	Values []string `toml:"values" json:"values" validate:"min=1"`
}

type Config struct {
	LLM          LLMConfig          `toml:"llm"`
	Memgraph     MemgraphConfig     `toml:"memgraph"`
	Store        StoreConfig        `toml:"store"`
	Encyclopedia EncyclopediaConfig `toml:"encyclopedia"`
	Meanings     MeaningsConfig     `toml:"meanings"`
	Sync         SyncConfig         `toml:"sync"`
	Server       ServerConfig       `toml:"server"`
	Log          LogConfig          `toml:"log"`
	Attributes   []AttributeOption  `toml:"attributes" validate:"dive"`
}

// Duration decodes TOML strings such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "tif-custom-llama:latest",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.2,
			MaxTokens:   512,
		},
		Memgraph: MemgraphConfig{
			URI:            "bolt://localhost:7687",
			ConnectTimeout: Duration{time.Second},
		},
		Store: StoreConfig{Driver: "memory"},
		Encyclopedia: EncyclopediaConfig{
			SearchURL:   "https://en.wikipedia.org/w/api.php",
			ArticleURL:  "https://en.wikipedia.org/wiki",
			Limit:       3,
			RatePerSec:  5,
			Timeout:     Duration{10 * time.Second},
			UserAgent:   "ontosense/1.0",
			MaxFailures: 5,
		},
		Meanings: MeaningsConfig{
			Language:        "Romanian",
			MaxMeanings:     3,
			GenerateTimeout: Duration{60 * time.Second},
		},
		Sync: SyncConfig{
			Concurrency: 8,
			Timeout:     Duration{10 * time.Second},
		},
		Server: ServerConfig{
			Port:         "5121",
			AllowOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Log: LogConfig{Mode: "dev"},
	}
}

// Load reads a TOML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "OLLAMA_DEFAULT_MODEL")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.Memgraph.URI, "MEMGRAPH_URI")
	set(&c.Memgraph.User, "MEMGRAPH_USER")
	set(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	set(&c.Store.Driver, "STORE_DRIVER")
	set(&c.Server.Port, "PORT")
	set(&c.Log.Mode, "LOG_MODE")
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// AttributesFor returns the catalog entries for word.
func (c *Config) AttributesFor(word string) []AttributeOption {
	var out []AttributeOption
	for _, a := range c.Attributes {
		if a.Word == word {
			out = append(out, a)
		}
	}
	return out
}
