package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, accessTTL, refreshTTL string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")

	content := []byte(
		`env: "local"` + "\n" +
			"http_server:\n  address: \"localhost:9090\"\n" +
			"tokens:\n  access_token_ttl: " + accessTTL + "\n  refresh_token_ttl: " + refreshTTL + "\n" +
			"  access_token_secret: \"a\"\n  refresh_token_secret: \"r\"\n" +
			"postgres:\n  user: \"u\"\n  password: \"p\"\n  dbname: \"d\"\n" +
			"redis:\n  addr: \"localhost:6379\"\n" +
			"rabbitmq:\n  url: \"amqp://localhost\"\n  queue_name: \"q\"\n" +
			"s3:\n  endpoint: \"http://localhost:9000\"\n  bucket: \"b\"\n" +
			"  access_key: \"ak\"\n  secret_key: \"sk\"\n  public_base_url: \"http://localhost:9000\"\n")

	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return path
}

func TestMustLoad(t *testing.T) {
	cfg := MustLoad(writeConfig(t, "15m", "720h"))

	if cfg.Env != "local" {
		t.Fatalf("env mismatch: %q", cfg.Env)
	}
	if cfg.HTTPServer.Address != "localhost:9090" {
		t.Fatalf("address mismatch: %q", cfg.HTTPServer.Address)
	}
	if cfg.Tokens.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("access ttl mismatch: %v", cfg.Tokens.AccessTokenTTL)
	}
}

func TestMustLoad_RefusesAccessTTLNotShorter(t *testing.T) {
	for _, tc := range []struct {
		name    string
		access  string
		refresh string
	}{
		{"equal", "1h", "1h"},
		{"longer", "2h", "1h"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for access ttl %s vs refresh ttl %s", tc.access, tc.refresh)
				}
			}()

			MustLoad(writeConfig(t, tc.access, tc.refresh))
		})
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing config file")
		}
	}()

	MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
}
