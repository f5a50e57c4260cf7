// Package config loads the YAML configuration file driving the Tessera
// binary: store connection and pool tuning, the declared schema, reset
// backup target, logging, and the HTTP listen address.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/schema"
)

// Config is the full parsed configuration file.
type Config struct {
	Log      Log      `yaml:"log"`
	Database Database `yaml:"database"`
	Schema   Schema   `yaml:"schema"`
	Backup   Backup   `yaml:"backup"`
	Server   Server   `yaml:"server"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Database configures the store connection and pool.
type Database struct {
	DSN             string   `yaml:"dsn"`
	MaxConns        int32    `yaml:"max_conns"`
	MinConns        int32    `yaml:"min_conns"`
	MaxConnLifetime Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  Duration `yaml:"connect_timeout"`
	AcquireTimeout  Duration `yaml:"acquire_timeout"`

	// Mode selects how an existing schema is treated at connect time:
	// "trust" (default) or "verify".
	Mode string `yaml:"mode"`
}

// Duration is a time.Duration that unmarshals from the usual Go duration
// string form ("10s", "5m") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errs.Wrap(errs.KindInvalidInput, "parse duration "+s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Schema declares the managed tables, parents before children.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table declares one table.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// Column declares one column.
type Column struct {
	Name       string      `yaml:"name"`
	Type       string      `yaml:"type"`
	NotNull    bool        `yaml:"not_null"`
	Unique     bool        `yaml:"unique"`
	PrimaryKey bool        `yaml:"primary_key"`
	References *References `yaml:"references"`
}

// References declares a foreign key target.
type References struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Backup configures where reset snapshots go.
type Backup struct {
	// Target is "file" (default) or "minio".
	Target string `yaml:"target"`

	// Path is the snapshot file path for the file target.
	Path string `yaml:"path"`

	// MinIO settings for the minio target.
	Minio Minio `yaml:"minio"`
}

// Minio configures the object-storage backup target.
type Minio struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Key       string `yaml:"key"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses the configuration file at path, then applies
// environment overrides. Secrets should come from the environment rather
// than the file: TESSERA_DATABASE_DSN and TESSERA_MINIO_SECRET_KEY
// override their file counterparts when set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "read config file", err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration and applies defaults and environment
// overrides.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "parse config file", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 25
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 5
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = Duration(30 * time.Minute)
	}
	if c.Database.MaxConnIdleTime == 0 {
		c.Database.MaxConnIdleTime = Duration(5 * time.Minute)
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = Duration(10 * time.Second)
	}
	if c.Database.AcquireTimeout == 0 {
		c.Database.AcquireTimeout = Duration(5 * time.Second)
	}
	if c.Database.Mode == "" {
		c.Database.Mode = "trust"
	}
	if c.Backup.Target == "" {
		c.Backup.Target = "file"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "tessera-backup.json"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("TESSERA_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if key := os.Getenv("TESSERA_MINIO_SECRET_KEY"); key != "" {
		c.Backup.Minio.SecretKey = key
	}
}

// Spec converts the declared schema section into the immutable schema.Spec
// the database layer works from.
func (c *Config) Spec() (schema.Spec, error) {
	tables := make([]schema.Table, 0, len(c.Schema.Tables))
	for _, t := range c.Schema.Tables {
		cols := make([]schema.Column, 0, len(t.Columns))
		for _, col := range t.Columns {
			var opts []schema.ColumnOption
			if col.NotNull {
				opts = append(opts, schema.NotNull())
			}
			if col.Unique {
				opts = append(opts, schema.Unique())
			}
			if col.PrimaryKey {
				opts = append(opts, schema.PrimaryKey())
			}
			if col.References != nil {
				opts = append(opts, schema.References(col.References.Table, col.References.Column))
			}
			cols = append(cols, schema.NewColumn(col.Name, col.Type, opts...))
		}
		table, err := schema.NewTable(t.Name, cols...)
		if err != nil {
			return schema.Spec{}, err
		}
		tables = append(tables, table)
	}
	return schema.NewSpec(tables...)
}
