package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadGameConfResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.yml")
	yml := `server_name: Test Station
web_port: 9000
bolt_path: db/station.bolt
admin_log_path: /var/lib/station/adminlog.db
prototype_dir: protos
sandbox_default: true
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatalf("LoadGameConf: %v", err)
	}
	if gc.ServerName != "Test Station" || gc.WebPort != 9000 || !gc.SandboxDefault {
		t.Errorf("conf = %+v", gc)
	}
	if gc.BoltPath != filepath.Join(dir, "db/station.bolt") {
		t.Errorf("BoltPath = %q", gc.BoltPath)
	}
	if gc.AdminLogPath != "/var/lib/station/adminlog.db" {
		t.Errorf("absolute path rewritten: %q", gc.AdminLogPath)
	}
	if gc.PrototypeDir != filepath.Join(dir, "protos") {
		t.Errorf("PrototypeDir = %q", gc.PrototypeDir)
	}
	// Unset keys keep their defaults.
	if gc.RateLimit != 60 || !gc.AutoRound {
		t.Errorf("defaults lost: rate %d auto %v", gc.RateLimit, gc.AutoRound)
	}
}

func TestLoadGameConfErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadGameConf(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("missing file should fail")
	}
	bad := filepath.Join(dir, "bad.yml")
	os.WriteFile(bad, []byte("web_port: [nope"), 0644)
	if _, err := LoadGameConf(bad); err == nil {
		t.Error("bad YAML should fail")
	}
}

func TestGameConfValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GameConf)
		want   string
	}{
		{"defaults", func(*GameConf) {}, ""},
		{"port zero", func(c *GameConf) { c.WebPort = 0 }, "out of range"},
		{"port too high", func(c *GameConf) { c.WebPort = 70000 }, "out of range"},
		{"cert without key", func(c *GameConf) { c.TLSCert = "a.pem" }, "set together"},
		{"negative rate", func(c *GameConf) { c.RateLimit = -1 }, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gc := DefaultGameConf()
			tt.mutate(gc)
			err := gc.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("STATION_PORT", "7000")
	t.Setenv("STATION_SANDBOX", "true")
	t.Setenv("STATION_CORS_ORIGINS", "https://a.example,https://b.example")

	gc := DefaultGameConf()
	gc.ServerName = "From File"
	if err := gc.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if gc.WebPort != 7000 || !gc.SandboxDefault {
		t.Errorf("conf = %+v", gc)
	}
	if len(gc.CORSOrigins) != 2 || gc.CORSOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", gc.CORSOrigins)
	}
	if gc.ServerName != "From File" {
		t.Errorf("unset variables should leave values alone, name = %q", gc.ServerName)
	}
}

func TestApplyEnvRejectsBadValue(t *testing.T) {
	t.Setenv("STATION_PORT", "not-a-port")
	if err := DefaultGameConf().ApplyEnv(); err == nil {
		t.Error("expected an error for a non-numeric port")
	}
}
