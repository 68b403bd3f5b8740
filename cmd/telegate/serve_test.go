package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// Not parallel: loadConfig reads the package-level config path flag.
func loadFrom(t *testing.T, path string) error {
	t.Helper()
	old := cfgPath
	cfgPath = path
	t.Cleanup(func() { cfgPath = old })
	_, err := loadConfig()
	return err
}

func TestLoadConfigAcceptsValidFile(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"
webhook_host = "https://gw.example.com"
webhook_secret = "s3cret"
`)
	if err := loadFrom(t, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigRejectsAscendingThresholds(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"
webhook_host = "https://gw.example.com"
webhook_secret = "s3cret"

[search]
high_threshold = 0.10
medium_threshold = 0.50
low_threshold = 0.90
`)
	if err := loadFrom(t, path); err == nil {
		t.Fatalf("ascending thresholds must fail at startup")
	}
}

func TestLoadConfigRejectsBadCIDR(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"
webhook_host = "https://gw.example.com"
webhook_secret = "s3cret"

[filter]
enabled = false
allowed_cidrs = ["not-a-cidr"]
`)
	if err := loadFrom(t, path); err == nil {
		t.Fatalf("malformed cidr must fail at startup even with the filter disabled")
	}
}

func TestLoadConfigRejectsMissingWebhookCredentials(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"
`)
	if err := loadFrom(t, path); err == nil {
		t.Fatalf("registration without host and secret must fail at startup")
	}
}
