package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedding"`

	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Chunker struct {
		ChunkSize           int     `yaml:"chunk_size"`
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
	} `yaml:"chunker"`

	VectorStore struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
	} `yaml:"vector_store"`

	GraphStore struct {
		URI      string `yaml:"uri"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"graph_store"`

	Memory struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"memory"`

	Scraper struct {
		RateLimit      float64 `yaml:"rate_limit"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"scraper"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/scholar/config.yaml"),
			"/etc/scholar/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 768
	}

	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = config.Embedding.BaseURL
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 512
	}
	if config.Chunker.SimilarityThreshold == 0 {
		config.Chunker.SimilarityThreshold = 0.5
	}

	if config.VectorStore.Collection == "" {
		config.VectorStore.Collection = "documents"
	}

	if config.Memory.DataDir == "" {
		config.Memory.DataDir = filepath.Join(os.Getenv("HOME"), ".local/share/scholar")
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.TimeoutSeconds == 0 {
		config.Scraper.TimeoutSeconds = 30
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.VectorStore.URL = dbURL
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.GraphStore.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.GraphStore.User = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.GraphStore.Password = pass
	}
}
