package bootstrap

import (
	"testing"
	"time"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "studytrack",
		CheckoutWindow:      24 * time.Hour,
		DueSoonWindow:       2 * time.Hour,
		WatcherPollInterval: 30 * time.Second,
	}
}

func TestValidateConfig(t *testing.T) {
	logger := zap.NewNop()
	coreCfg := &config.CoreConfig{}

	if err := ValidateConfig(coreCfg, validAppConfig(), logger); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := validAppConfig()
	bad.MongoURI = "http://localhost:27017"
	if err := ValidateConfig(coreCfg, bad, logger); err == nil {
		t.Error("expected error for non-mongodb URI")
	}

	bad = validAppConfig()
	bad.CheckoutWindow = 0
	if err := ValidateConfig(coreCfg, bad, logger); err == nil {
		t.Error("expected error for zero checkout window")
	}

	bad = validAppConfig()
	bad.DueSoonWindow = 48 * time.Hour
	if err := ValidateConfig(coreCfg, bad, logger); err == nil {
		t.Error("expected error for due-soon window longer than checkout window")
	}
}

func TestParseAdminEmails(t *testing.T) {
	got := parseAdminEmails(" Admin@Example.com, second@example.com ,, ")
	want := []string{"admin@example.com", "second@example.com"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if got := parseAdminEmails(""); got != nil {
		t.Errorf("empty input: got %v, want nil", got)
	}
}
