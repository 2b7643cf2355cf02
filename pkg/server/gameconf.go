package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// GameConf holds server configuration loaded from YAML.
type GameConf struct {
	// --- Identity ---
	ServerName string `yaml:"server_name" env:"STATION_NAME"`

	// --- Web/Security ---
	WebPort     int      `yaml:"web_port" env:"STATION_PORT"`                              // HTTP(S) port (default 8443)
	WebHost     string   `yaml:"web_host" env:"STATION_HOST"`                              // Bind address (empty = all interfaces)
	WebDomain   string   `yaml:"web_domain" env:"STATION_DOMAIN"`                          // Let's Encrypt domain (empty = no autocert)
	TLSCert     string   `yaml:"tls_cert" env:"STATION_TLS_CERT"`                          // Path to TLS certificate file
	TLSKey      string   `yaml:"tls_key" env:"STATION_TLS_KEY"`                            // Path to TLS private key file
	CertDir     string   `yaml:"cert_dir" env:"STATION_CERT_DIR"`                          // Directory for generated certs
	CORSOrigins []string `yaml:"cors_origins" env:"STATION_CORS_ORIGINS" envSeparator:","` // Allowed CORS origins
	RateLimit   int      `yaml:"rate_limit" env:"STATION_RATE_LIMIT"`                      // Requests per minute per IP (default 60)
	JWTSecret   string   `yaml:"jwt_secret" env:"STATION_JWT_SECRET"`                      // JWT signing secret (auto-generated if empty)
	JWTExpiry   int      `yaml:"jwt_expiry" env:"STATION_JWT_EXPIRY"`                      // JWT expiry in seconds (default 86400)

	// --- Storage ---
	BoltPath        string `yaml:"bolt_path" env:"STATION_BOLT"`                     // Accounts and settings
	AdminLogPath    string `yaml:"admin_log_path" env:"STATION_ADMINLOG"`            // SQLite admin log
	AdminLogTimeout int    `yaml:"admin_log_timeout" env:"STATION_ADMINLOG_TIMEOUT"` // Busy timeout in seconds (default 5)
	ArchiveDir      string `yaml:"archive_dir" env:"STATION_ARCHIVE_DIR"`            // Where periodic data archives are written
	ArchiveKeep     int    `yaml:"archive_keep" env:"STATION_ARCHIVE_KEEP"`          // Archives to retain (0 = keep all)

	// --- Content ---
	PrototypeDir string `yaml:"prototype_dir" env:"STATION_PROTODIR"` // Extra prototype YAML, watched for changes
	LocaleFile   string `yaml:"locale_file" env:"STATION_LOCALE"`     // Message overrides

	// --- Game ---
	SandboxDefault bool `yaml:"sandbox_default" env:"STATION_SANDBOX"` // Sandbox state at boot when nothing is persisted
	AutoRound      bool `yaml:"auto_round" env:"STATION_AUTO_ROUND"`   // Start a round as soon as the server boots

	// Path is the file the config was loaded from, if any.
	Path string `yaml:"-"`
}

// DefaultGameConf returns a GameConf with defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		ServerName:      "GoStation",
		WebPort:         8443,
		RateLimit:       60,
		JWTExpiry:       86400,
		BoltPath:        "data/station.bolt",
		AdminLogPath:    "data/adminlog.db",
		AdminLogTimeout: 5,
		ArchiveDir:      "data/archives",
		ArchiveKeep:     10,
		AutoRound:       true,
	}
}

// LoadGameConf loads a YAML config file over the defaults. Relative paths in
// the file are resolved against the file's directory.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: reading %s: %w", path, err)
	}

	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("server: parsing YAML %s: %w", path, err)
	}

	gc.Path = path
	baseDir := filepath.Dir(path)
	for _, p := range []*string{&gc.BoltPath, &gc.AdminLogPath, &gc.ArchiveDir, &gc.PrototypeDir, &gc.LocaleFile, &gc.TLSCert, &gc.TLSKey, &gc.CertDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	return gc, gc.Validate()
}

// ApplyEnv overrides gc with any STATION_* environment variables that are
// set. Unset variables leave the current value alone.
func (gc *GameConf) ApplyEnv() error {
	if err := env.Parse(gc); err != nil {
		return fmt.Errorf("server: environment: %w", err)
	}
	return nil
}

// Validate checks for settings that cannot work together.
func (gc *GameConf) Validate() error {
	if gc.WebPort <= 0 || gc.WebPort > 65535 {
		return fmt.Errorf("server: web_port %d out of range", gc.WebPort)
	}
	if (gc.TLSCert == "") != (gc.TLSKey == "") {
		return fmt.Errorf("server: tls_cert and tls_key must be set together")
	}
	if gc.RateLimit < 0 {
		return fmt.Errorf("server: rate_limit must not be negative")
	}
	if gc.ArchiveKeep < 0 {
		return fmt.Errorf("server: archive_keep must not be negative")
	}
	return nil
}
