package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "amplyst-matcher"
	envPrefix = "AMPLYST"
)

type Config struct {
	Listen   string          `mapstructure:"listen"`
	Server   *ServerConfig   `mapstructure:"server"`
	Matching *MatchingConfig `mapstructure:"matching"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type ServerConfig struct {
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read-header-timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown-timeout"`
	MaxBodyBytes      int64         `mapstructure:"max-body-bytes"`
}

type MatchingConfig struct {
	DefaultK int `mapstructure:"default-k"`
}

type AIConfig struct {
	Provider        string         `mapstructure:"provider"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	MaxAttempts     int            `mapstructure:"max-attempts"`
	InitialBackoff  time.Duration  `mapstructure:"initial-backoff"`
	MaxBackoff      time.Duration  `mapstructure:"max-backoff"`
	Concurrency     int            `mapstructure:"concurrency"`
	QueueDepth      int            `mapstructure:"queue-depth"`
	MaxLogLength    int            `mapstructure:"max-log-length"`
	DeadlineReserve time.Duration  `mapstructure:"deadline-reserve"`
	Gemini          *GeminiConfig  `mapstructure:"gemini"`
	OpenAI          *OpenAIConfig  `mapstructure:"openai"`
	Webhook         *WebhookConfig `mapstructure:"webhook"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type WebhookConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	Model     string `mapstructure:"model"`
}

var defaults = map[string]any{
	"listen":                     ":8080",
	"server.request-timeout":     30 * time.Second,
	"server.read-header-timeout": 5 * time.Second,
	"server.shutdown-timeout":    10 * time.Second,
	"server.max-body-bytes":      1 << 20,
	"matching.default-k":         5,
	"ai.provider":                "",
	"ai.timeout":                 10 * time.Second,
	"ai.max-attempts":            3,
	"ai.initial-backoff":         500 * time.Millisecond,
	"ai.max-backoff":             5 * time.Second,
	"ai.concurrency":             4,
	"ai.queue-depth":             64,
	"ai.max-log-length":          200,
	"ai.deadline-reserve":        250 * time.Millisecond,
	"ai.gemini.api-key":          "",
	"ai.gemini.api-key-file":     "",
	"ai.gemini.model":            "gemini-2.5-flash",
	"ai.openai.api-key":          "",
	"ai.openai.api-key-file":     "",
	"ai.openai.model":            "gpt-4o-mini",
	"ai.openai.base-url":         "",
	"ai.webhook.endpoint":        "",
	"ai.webhook.token":           "",
	"ai.webhook.token-file":      "",
	"ai.webhook.model":           "",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "amplyst-matcher ranks influencer candidates for a campaign",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is amplyst-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// The config file is optional; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}
	if config.AI.Webhook == nil {
		config.AI.Webhook = &WebhookConfig{}
	}

	return config, nil
}
