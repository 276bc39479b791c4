/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the loyalty-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	RedisCooldownPrefix string `mapstructure:"REDIS_COOLDOWN_PREFIX"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	UserEventQueue      string `mapstructure:"USER_EVENT_QUEUE"`
	UserEventExchange   string `mapstructure:"USER_EVENT_EXCHANGE"`
	ClerkJWKSURL        string `mapstructure:"CLERK_JWKS_URL"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`

	EarnChatPoints               int64 `mapstructure:"EARN_CHAT_POINTS"`
	EarnChatCooldownSeconds      int   `mapstructure:"EARN_CHAT_COOLDOWN_SECONDS"`
	EarnChillTimerPoints         int64 `mapstructure:"EARN_CHILL_TIMER_POINTS"`
	EarnChillTimerCooldownSecond int   `mapstructure:"EARN_CHILL_TIMER_COOLDOWN_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("USER_EVENT_QUEUE", "loyalty_service.user_events")
	viper.SetDefault("USER_EVENT_EXCHANGE", "user_events")
	viper.SetDefault("REDIS_COOLDOWN_PREFIX", "loyalty:earn_cooldown")
	viper.SetDefault("EARN_CHAT_POINTS", 1)
	viper.SetDefault("EARN_CHAT_COOLDOWN_SECONDS", 60)
	viper.SetDefault("EARN_CHILL_TIMER_POINTS", 5)
	viper.SetDefault("EARN_CHILL_TIMER_COOLDOWN_SECONDS", 600)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LOYALTY_REDIS_URL")
	_ = viper.BindEnv("REDIS_COOLDOWN_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("USER_EVENT_QUEUE")
	_ = viper.BindEnv("USER_EVENT_EXCHANGE")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LOYALTY_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("EARN_CHAT_POINTS")
	_ = viper.BindEnv("EARN_CHAT_COOLDOWN_SECONDS")
	_ = viper.BindEnv("EARN_CHILL_TIMER_POINTS")
	_ = viper.BindEnv("EARN_CHILL_TIMER_COOLDOWN_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LOYALTY_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisCooldownPrefix = strings.TrimSpace(config.RedisCooldownPrefix)
	if config.RedisCooldownPrefix == "" {
		config.RedisCooldownPrefix = "loyalty:earn_cooldown"
	}

	if config.EarnChatPoints <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive chat earn points configured; using default\" points=%d", config.EarnChatPoints)
		config.EarnChatPoints = 1
	}
	if config.EarnChatCooldownSeconds <= 0 {
		config.EarnChatCooldownSeconds = 60
	}
	if config.EarnChillTimerPoints <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive chill timer earn points configured; using default\" points=%d", config.EarnChillTimerPoints)
		config.EarnChillTimerPoints = 5
	}
	if config.EarnChillTimerCooldownSecond <= 0 {
		config.EarnChillTimerCooldownSecond = 600
	}

	return
}
