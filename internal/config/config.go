package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DBConfig holds the optional generation journal database configuration
type DBConfig struct {
	Host            string
	Port            int
	User            string `validate:"required_with=Host"`
	Password        string
	Database        string `validate:"required_with=Host"`
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether the journal database is configured
func (d DBConfig) Enabled() bool {
	return d.Host != ""
}

// ChatConfig holds settings for the chat/vision completion endpoint
type ChatConfig struct {
	APIKey      string `validate:"required"`
	BaseURL     string `validate:"omitempty,url"`
	VisionModel string `validate:"required"`
	TextModel   string `validate:"required"`
	MaxTokens   int    `validate:"gt=500"`
}

// ImageGenConfig holds settings for the image-generation endpoint
type ImageGenConfig struct {
	APIKey          string `validate:"required"`
	BaseURL         string `validate:"omitempty,url"`
	Model           string `validate:"required"`
	MaxPromptLen    int    `validate:"gt=0"`
	RateLimitPerMin int    `validate:"gt=0"`
	MaxWait         time.Duration
	MaxAttempts     int `validate:"gte=0"`
}

// Config holds all configuration for the application
type Config struct {
	Chat     ChatConfig
	ImageGen ImageGenConfig

	PromptsDir                 string `validate:"required"`
	SamplesDir                 string `validate:"required"`
	CollagesDir                string `validate:"required"`
	TempDir                    string `validate:"required"`
	ContentPolicyViolationFile string `validate:"required"`

	EmissionPacing     time.Duration
	HTTPTimeout        time.Duration
	ServerAddr         string `validate:"required"`
	SamplesRefreshSpec string
	FileRefSweepSpec   string
	FileRefTTL         time.Duration

	DB DBConfig
}

// Load loads the configuration from the environment. Values from envFile (default ".env") are
// applied first; an optional config file registered through LoadFile sits beneath the environment.
func Load(envFile string) (*Config, error) {
	return load(envFile, "")
}

// LoadFile is like Load but also reads a YAML/JSON/TOML config file.
func LoadFile(envFile, configFile string) (*Config, error) {
	return load(envFile, configFile)
}

func load(envFile, configFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading %s file: %w", envFile, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	config := &Config{
		Chat: ChatConfig{
			APIKey:      v.GetString("OPENAI_API_KEY"),
			BaseURL:     v.GetString("OPENAI_BASE_URL"),
			VisionModel: v.GetString("OPENAI_MODEL_VISION"),
			TextModel:   v.GetString("OPENAI_MODEL_TEXT"),
		},
		ImageGen: ImageGenConfig{
			APIKey:  v.GetString("DALL_E_OPENAI_API_KEY"),
			BaseURL: v.GetString("DALL_E_OPENAI_BASE_URL"),
			Model:   v.GetString("DALL_E_MODEL"),
		},
		PromptsDir:                 v.GetString("PROMPTS_DIR"),
		SamplesDir:                 v.GetString("SAMPLES_DIR"),
		CollagesDir:                v.GetString("COLLAGES_DIR"),
		TempDir:                    v.GetString("TEMP_DIR"),
		ContentPolicyViolationFile: v.GetString("CONTENT_POLICY_VIOLATION_IMAGE"),
		ServerAddr:                 v.GetString("SERVER_ADDR"),
		SamplesRefreshSpec:         v.GetString("SAMPLES_REFRESH_SPEC"),
		FileRefSweepSpec:           v.GetString("FILE_REF_SWEEP_SPEC"),
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}

	// Required numeric values fail fast
	var err error
	if config.Chat.MaxTokens, err = requiredInt(v, "OPENAI_MAX_TOKENS"); err != nil {
		return nil, err
	}
	if config.ImageGen.MaxPromptLen, err = requiredInt(v, "DALL_E_MAX_PROMPT_LEN"); err != nil {
		return nil, err
	}
	if config.ImageGen.RateLimitPerMin, err = requiredInt(v, "IMAGE_GEN_RATE_LIMIT_PER_MIN"); err != nil {
		return nil, err
	}

	// Optional numeric values
	if config.ImageGen.MaxAttempts, err = optionalInt(v, "IMAGE_GEN_MAX_ATTEMPTS"); err != nil {
		return nil, err
	}
	maxWait, err := optionalInt(v, "IMAGE_GEN_MAX_WAIT_SECS")
	if err != nil {
		return nil, err
	}
	config.ImageGen.MaxWait = time.Duration(maxWait) * time.Second
	if config.ImageGen.MaxWait > 0 && config.ImageGen.RateLimitPerMin > 0 && config.ImageGen.MaxWait < config.ImageGen.MinRetryWait() {
		return nil, fmt.Errorf("IMAGE_GEN_MAX_WAIT_SECS must be at least %d", int(config.ImageGen.MinRetryWait()/time.Second))
	}

	pacing, err := optionalInt(v, "EMISSION_PACING_MS")
	if err != nil {
		return nil, err
	}
	config.EmissionPacing = time.Duration(pacing) * time.Millisecond

	timeout, err := optionalInt(v, "HTTP_TIMEOUT_SECS")
	if err != nil {
		return nil, err
	}
	config.HTTPTimeout = time.Duration(timeout) * time.Second

	ttl, err := optionalInt(v, "FILE_REF_TTL_MINS")
	if err != nil {
		return nil, err
	}
	config.FileRefTTL = time.Duration(ttl) * time.Minute

	// Load database configuration
	dbConfig := DBConfig{
		Host:     v.GetString("DB_HOST"),
		User:     v.GetString("DB_USER"),
		Password: v.GetString("DB_PASSWORD"),
		Database: v.GetString("DB_NAME"),
		SSLMode:  v.GetString("DB_SSL_MODE"),
	}
	if dbConfig.Port, err = optionalInt(v, "DB_PORT"); err != nil {
		return nil, err
	}
	if dbConfig.MaxOpenConns, err = optionalInt(v, "DB_MAX_OPEN_CONNS"); err != nil {
		return nil, err
	}
	if dbConfig.MaxIdleConns, err = optionalInt(v, "DB_MAX_IDLE_CONNS"); err != nil {
		return nil, err
	}
	lifetime, err := optionalInt(v, "DB_CONN_MAX_LIFETIME")
	if err != nil {
		return nil, err
	}
	dbConfig.ConnMaxLifetime = time.Duration(lifetime) * time.Second
	config.DB = dbConfig

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OPENAI_MODEL_VISION", "Qwen/Qwen2-VL-72B-Instruct")
	v.SetDefault("OPENAI_MODEL_TEXT", "mistralai/Mistral-Nemo-Instruct-2407")
	v.SetDefault("DALL_E_MODEL", "dall-e-3")
	v.SetDefault("IMAGE_GEN_MAX_WAIT_SECS", 600)
	v.SetDefault("IMAGE_GEN_MAX_ATTEMPTS", 0)
	v.SetDefault("EMISSION_PACING_MS", 1000)
	v.SetDefault("HTTP_TIMEOUT_SECS", 120)
	v.SetDefault("PROMPTS_DIR", "prompts")
	v.SetDefault("SAMPLES_DIR", "samples")
	v.SetDefault("COLLAGES_DIR", "collages")
	v.SetDefault("CONTENT_POLICY_VIOLATION_IMAGE", "images/content_policy_violation.png")
	v.SetDefault("SERVER_ADDR", "0.0.0.0:7860")
	v.SetDefault("SAMPLES_REFRESH_SPEC", "0 */5 * * * *")
	v.SetDefault("FILE_REF_SWEEP_SPEC", "0 0 * * * *")
	v.SetDefault("FILE_REF_TTL_MINS", 1440)
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 300)
}

func requiredInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func optionalInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// MinRetryWait returns the minimum wait between rate-limited image generation attempts,
// floor(60 / rate) + 1 seconds.
func (c ImageGenConfig) MinRetryWait() time.Duration {
	return time.Duration(60/c.RateLimitPerMin+1) * time.Second
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}
