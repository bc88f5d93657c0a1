/**
 * @description
 * This package handles the configuration management for the banking-service.
 * It uses the Viper library to read configuration from environment variables
 * or an optional .env file, shared by the api, notifier and scheduler binaries.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and defaults.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultServerPort                = "8080"
	defaultRateLimitPrefix           = "oakline:rate_limit"
	defaultEmailExchange             = "oakline.notifications"
	defaultEmailQueue                = "notifier.email"
	defaultVerificationCodeTTLMin    = 10
	defaultVerificationRatePerHour   = 5
	defaultBankDetailsCacheTTLMin    = 60
	defaultMFAIssuer                 = "Oakline Bank"
	defaultCodePurgeSchedule         = "*/15 * * * *"
	defaultLoanClosureSchedule       = "0 * * * *"
	defaultEmailFrom                 = "Oakline Bank <no-reply@oaklinebank.com>"
	defaultAllowedOrigins            = "http://localhost:3000"
	defaultVerificationMaxConfirmTry = 5
)

// Config holds all the configuration variables for the banking-service binaries.
type Config struct {
	ServerPort                    string `mapstructure:"SERVER_PORT"`
	DatabaseURL                   string `mapstructure:"DATABASE_URL"`
	RedisURL                      string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix          string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                   string `mapstructure:"RABBITMQ_URL"`
	EmailExchange                 string `mapstructure:"EMAIL_EXCHANGE"`
	EmailQueue                    string `mapstructure:"EMAIL_QUEUE"`
	EmailAPIBaseURL               string `mapstructure:"EMAIL_API_BASE_URL"`
	EmailAPIKey                   string `mapstructure:"EMAIL_API_KEY"`
	EmailFrom                     string `mapstructure:"EMAIL_FROM"`
	JWTSecret                     string `mapstructure:"JWT_SECRET"`
	JWTIssuer                     string `mapstructure:"JWT_ISSUER"`
	JWTAudience                   string `mapstructure:"JWT_AUDIENCE"`
	CORSAllowedOrigins            string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	VerificationCodeTTLMinutes    int    `mapstructure:"VERIFICATION_CODE_TTL_MINUTES"`
	VerificationRateLimitPerHour  int    `mapstructure:"VERIFICATION_RATE_LIMIT_PER_HOUR"`
	VerificationMaxConfirmAttempt int    `mapstructure:"VERIFICATION_MAX_CONFIRM_ATTEMPTS"`
	MFAIssuer                     string `mapstructure:"MFA_ISSUER"`
	BankDetailsCacheTTLMinutes    int    `mapstructure:"BANK_DETAILS_CACHE_TTL_MINUTES"`
	CodePurgeSchedule             string `mapstructure:"CODE_PURGE_SCHEDULE"`
	LoanClosureSchedule           string `mapstructure:"LOAN_CLOSURE_SCHEDULE"`
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and an optional
// .env file located at path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("EMAIL_EXCHANGE", defaultEmailExchange)
	viper.SetDefault("EMAIL_QUEUE", defaultEmailQueue)
	viper.SetDefault("EMAIL_FROM", defaultEmailFrom)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins)
	viper.SetDefault("VERIFICATION_CODE_TTL_MINUTES", defaultVerificationCodeTTLMin)
	viper.SetDefault("VERIFICATION_RATE_LIMIT_PER_HOUR", defaultVerificationRatePerHour)
	viper.SetDefault("VERIFICATION_MAX_CONFIRM_ATTEMPTS", defaultVerificationMaxConfirmTry)
	viper.SetDefault("MFA_ISSUER", defaultMFAIssuer)
	viper.SetDefault("BANK_DETAILS_CACHE_TTL_MINUTES", defaultBankDetailsCacheTTLMin)
	viper.SetDefault("CODE_PURGE_SCHEDULE", defaultCodePurgeSchedule)
	viper.SetDefault("LOAN_CLOSURE_SCHEDULE", defaultLoanClosureSchedule)

	// Bind envs explicitly so containers pick them up reliably.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EMAIL_EXCHANGE")
	_ = viper.BindEnv("EMAIL_QUEUE")
	_ = viper.BindEnv("EMAIL_API_BASE_URL")
	_ = viper.BindEnv("EMAIL_API_KEY")
	_ = viper.BindEnv("EMAIL_FROM")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("VERIFICATION_CODE_TTL_MINUTES")
	_ = viper.BindEnv("VERIFICATION_RATE_LIMIT_PER_HOUR")
	_ = viper.BindEnv("VERIFICATION_MAX_CONFIRM_ATTEMPTS")
	_ = viper.BindEnv("MFA_ISSUER")
	_ = viper.BindEnv("BANK_DETAILS_CACHE_TTL_MINUTES")
	_ = viper.BindEnv("CODE_PURGE_SCHEDULE")
	_ = viper.BindEnv("LOAN_CLOSURE_SCHEDULE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}

	if config.VerificationCodeTTLMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive verification code ttl; using default\" ttl_minutes=%d", config.VerificationCodeTTLMinutes)
		config.VerificationCodeTTLMinutes = defaultVerificationCodeTTLMin
	}
	if config.VerificationRateLimitPerHour <= 0 {
		config.VerificationRateLimitPerHour = defaultVerificationRatePerHour
	}
	if config.VerificationMaxConfirmAttempt <= 0 {
		config.VerificationMaxConfirmAttempt = defaultVerificationMaxConfirmTry
	}
	if config.BankDetailsCacheTTLMinutes <= 0 {
		config.BankDetailsCacheTTLMinutes = defaultBankDetailsCacheTTLMin
	}
	if strings.TrimSpace(config.MFAIssuer) == "" {
		config.MFAIssuer = defaultMFAIssuer
	}

	return
}
