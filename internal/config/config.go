package config

import (
	"net/url"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/superskip/dispatch/internal/lookup"
)

// Config holds the configuration settings for the dispatch service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the monitoring server.
// - APIKey: The API key for the address lookup service.
// - WebhookURL: The endpoint that receives run notifications and async results.
// - LookupURL: The base URL of the lookup API.
// - BatchSize: The maximum number of addresses submitted per batch.
// - InputPath: The CSV file with Address, City, State, Zip columns.
// - OutputPath: Optional path for the formatted-address text export.
type Config struct {
	Env        string // Env is the current environment: local, development, production.
	Port       int    // Port is the monitoring server port.
	APIKey     string // The API key for the lookup service, sent as a request header.
	WebhookURL string // The webhook endpoint, must be a valid http(s) URL.
	LookupURL  string // The base URL for the lookup API.
	BatchSize  int    // The maximum batch size, must be positive.
	InputPath  string // The input CSV path.
	OutputPath string // Optional output path for formatted addresses.
}

// MustLoad loads the configuration from the environment and returns a Config.
// It panics on missing or invalid required values.
func MustLoad() *Config {
	_ = godotenv.Load()

	viper.SetEnvPrefix("DISPATCH")
	viper.AutomaticEnv()

	viper.SetDefault("env", "production")
	viper.SetDefault("health_port", 8080)
	viper.SetDefault("batch_size", 20)
	viper.SetDefault("lookup_url", lookup.DefaultBaseURL)

	batchSize := viper.GetInt("batch_size")
	if batchSize <= 0 {
		panic("batch size must be a positive integer")
	}

	webhookURL := viper.GetString("webhook_url")
	if webhookURL == "" {
		panic("webhook URL is required")
	}
	if parsed, err := url.Parse(webhookURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		panic("webhook URL must be a valid http(s) endpoint")
	}

	inputPath := viper.GetString("input")
	if inputPath == "" {
		panic("input CSV path is required")
	}

	return &Config{
		Env:        viper.GetString("env"),
		Port:       viper.GetInt("health_port"),
		APIKey:     viper.GetString("api_key"),
		WebhookURL: webhookURL,
		LookupURL:  viper.GetString("lookup_url"),
		BatchSize:  batchSize,
		InputPath:  inputPath,
		OutputPath: viper.GetString("output"),
	}
}
