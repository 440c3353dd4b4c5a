package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		ListenAddr: ":8080",
		LogFormat:  "json",
		Storage:    StorageConfig{Driver: "sqlite", SQLite: SQLiteConfig{Path: "test.db"}},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid sqlite config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.Storage = StorageConfig{Driver: "postgres", Postgres: PostgresConfig{DSN: "postgres://localhost/watch"}}
			},
		},
		{
			name:   "valid default timezone",
			mutate: func(c *Config) { c.DefaultTimezone = "Asia/Kolkata" },
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: true,
		},
		{
			name:    "invalid default timezone",
			mutate:  func(c *Config) { c.DefaultTimezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "invalid driver",
			mutate:  func(c *Config) { c.Storage.Driver = "mysql" },
			wantErr: true,
		},
		{
			name:    "sqlite missing path",
			mutate:  func(c *Config) { c.Storage.SQLite.Path = "" },
			wantErr: true,
		},
		{
			name: "postgres missing dsn",
			mutate: func(c *Config) {
				c.Storage = StorageConfig{Driver: "postgres"}
			},
			wantErr: true,
		},
		{
			name:    "invalid listen addr",
			mutate:  func(c *Config) { c.ListenAddr = "no-port" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.DefaultTimezone != "America/Chicago" {
		t.Errorf("DefaultTimezone = %q, want America/Chicago", cfg.DefaultTimezone)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
listen_addr: ":9090"
log_format: text
default_timezone: America/Denver
storage:
  driver: postgres
  postgres:
    dsn: postgres://localhost/watch
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.DefaultTimezone != "America/Denver" {
		t.Errorf("DefaultTimezone = %q, want America/Denver", cfg.DefaultTimezone)
	}
	if cfg.DSN() != "postgres://localhost/watch" {
		t.Errorf("DSN() = %q, want the postgres dsn", cfg.DSN())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for explicitly named missing file")
	}
}
