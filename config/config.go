package config

import (
	"strings"
	"time"

	"student-portal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"app_env"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// Portal backend
	PortalBaseURL  string        `mapstructure:"portal_base_url"`
	PortalTimeout  time.Duration `mapstructure:"portal_timeout"`
	DeepLinkScheme string        `mapstructure:"deep_link_scheme"`

	// Payment flow
	GatewayProvider  string        `mapstructure:"gateway_provider"`
	DefaultGatewayID int           `mapstructure:"default_gateway_id"`
	DirectPayment    bool          `mapstructure:"direct_payment"`
	VerifyDelay      time.Duration `mapstructure:"verify_delay"`
	MaxPolls         int           `mapstructure:"max_polls"`
	Currency         string        `mapstructure:"currency"`
	CurrencySymbol   string        `mapstructure:"currency_symbol"`

	// Local store
	StoreDriver string `mapstructure:"store_driver"`
	StoreDSN    string `mapstructure:"store_dsn"`

	// Payment head cache
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	HeadsCacheTTL time.Duration `mapstructure:"heads_cache_ttl"`

	RazorpayKeyID         string `mapstructure:"razorpay_key_id"`
	RazorpayKeySecret     string `mapstructure:"razorpay_key_secret"`
	RazorpayWebhookSecret string `mapstructure:"razorpay_webhook_secret"`

	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	SMTPUser  string `mapstructure:"smtp_user"`
	SMTPPass  string `mapstructure:"smtp_pass"`
	EmailFrom string `mapstructure:"email_from"`

	// Kafka
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	PoolSize     int    `mapstructure:"pool_size"`
}

var AppConfig Config

var defaults = map[string]interface{}{
	"app_env":   "development",
	"port":      "8080",
	"log_level": "info",

	"portal_base_url":  "http://localhost:5000/api/",
	"portal_timeout":   "30s",
	"deep_link_scheme": "duportal",

	"gateway_provider":   "portal",
	"default_gateway_id": 1,
	"direct_payment":     true,
	"verify_delay":       "2500ms",
	"max_polls":          3,
	"currency":           "BDT",
	"currency_symbol":    "Tk ",

	"store_driver": "sqlite3",
	"store_dsn":    "file:portal.db?_busy_timeout=5000",

	"redis_addr":      "",
	"redis_password":  "",
	"redis_db":        0,
	"heads_cache_ttl": "10m",

	"razorpay_key_id":         "",
	"razorpay_key_secret":     "",
	"razorpay_webhook_secret": "",

	"smtp_host":  "smtp.gmail.com",
	"smtp_port":  587,
	"smtp_user":  "",
	"smtp_pass":  "",
	"email_from": "",

	"kafka_brokers": "",
	"kafka_topic":   "portal.payments",

	"otlp_endpoint": "",
	"pool_size":     16,
}

// LoadConfig reads .env (if any) and the process environment into AppConfig.
func LoadConfig() (*Config, error) {
	// Try loading .env from different locations
	envLocations := []string{
		".env",              // project root
		"config/.env",       // config subdirectory
		"../config/.env",    // one level up
		"../../config/.env", // two levels up
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		logger.Info("No .env file found, using environment variables")
	}

	cfg, err := Load(viper.New())
	if err != nil {
		return nil, err
	}
	AppConfig = *cfg
	return cfg, nil
}

// Load resolves every known key from v, falling back to defaults.
func Load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(cfg.PortalBaseURL, "/") {
		cfg.PortalBaseURL += "/"
	}
	if cfg.DefaultGatewayID <= 0 {
		cfg.DefaultGatewayID = 1
	}
	return &cfg, nil
}

// KafkaBrokerList splits the comma separated broker setting.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
