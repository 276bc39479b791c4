package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesLoyaltyServiceInternalAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "INTERNAL_API_KEY")
	setEnvWithCleanup(t, "LOYALTY_SERVICE_INTERNAL_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "alias-only-key" {
		t.Fatalf("expected InternalAPIKey from alias env var, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_InternalAPIKeyTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "INTERNAL_API_KEY", "primary-key")
	setEnvWithCleanup(t, "LOYALTY_SERVICE_INTERNAL_API_KEY", "alias-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "primary-key" {
		t.Fatalf("expected InternalAPIKey to prioritize INTERNAL_API_KEY, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_DefaultEarnRules(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "EARN_CHAT_POINTS")
	unsetEnvWithCleanup(t, "EARN_CHAT_COOLDOWN_SECONDS")
	unsetEnvWithCleanup(t, "EARN_CHILL_TIMER_POINTS")
	unsetEnvWithCleanup(t, "EARN_CHILL_TIMER_COOLDOWN_SECONDS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.EarnChatPoints != 1 || cfg.EarnChatCooldownSeconds != 60 {
		t.Fatalf("unexpected chat earn defaults: points=%d cooldown=%d", cfg.EarnChatPoints, cfg.EarnChatCooldownSeconds)
	}
	if cfg.EarnChillTimerPoints != 5 || cfg.EarnChillTimerCooldownSecond != 600 {
		t.Fatalf("unexpected chill timer earn defaults: points=%d cooldown=%d", cfg.EarnChillTimerPoints, cfg.EarnChillTimerCooldownSecond)
	}
}

func TestLoadConfig_CoercesNonPositiveEarnValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "EARN_CHAT_POINTS", "-3")
	setEnvWithCleanup(t, "EARN_CHAT_COOLDOWN_SECONDS", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.EarnChatPoints != 1 {
		t.Fatalf("expected negative chat points coerced to default 1, got %d", cfg.EarnChatPoints)
	}
	if cfg.EarnChatCooldownSeconds != 60 {
		t.Fatalf("expected zero cooldown coerced to default 60, got %d", cfg.EarnChatCooldownSeconds)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
