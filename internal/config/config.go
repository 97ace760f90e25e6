// Package config loads tablemirror settings from YAML and validates them
// against an embedded CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tablemirror/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// DefaultDebounce is the quiescence window between the first mutation of
// a batch and its flush.
const DefaultDebounce = 100 * time.Millisecond

// Config is the root configuration document.
type Config struct {
	Connection Connection    `yaml:"connection"`
	Schema     string        `yaml:"schema"`
	Table      string        `yaml:"table"`
	Logging    bool          `yaml:"logging"`
	Debounce   time.Duration `yaml:"debounce"`
	Log        LogConfig     `yaml:"log"`
}

// Connection describes the backing store. Opaque to the mirror.
type Connection struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	SeqURL string `yaml:"seq_url"`
}

// Default returns a baseline development config: a local sqlite file,
// schema "tk", text logs at info.
func Default() Config {
	return Config{
		Connection: Connection{
			Driver: "sqlite",
			Path:   "./data/main.db",
		},
		Schema:   store.DefaultWriteSchema,
		Debounce: DefaultDebounce,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default() and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, store.NewConfigurationError("parse config", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config against the embedded CUE schema.
// Returns a ConfigurationError describing every violation.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	doc := ctx.Encode(c.document())
	if err := doc.Err(); err != nil {
		return store.NewConfigurationError("validate config", err.Error())
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return store.NewConfigurationError("validate config", formatCUEError(err))
	}

	if c.Table != "" {
		if _, err := c.QualifiedTable(); err != nil {
			return err
		}
	}
	return nil
}

// document renders the config as the plain map the CUE schema describes.
// Empty optional strings are left out.
func (c Config) document() map[string]any {
	conn := map[string]any{"driver": c.Connection.Driver}
	optional := map[string]string{
		"path":     c.Connection.Path,
		"dsn":      c.Connection.DSN,
		"host":     c.Connection.Host,
		"user":     c.Connection.User,
		"password": c.Connection.Password,
		"database": c.Connection.Database,
		"sslmode":  c.Connection.SSLMode,
	}
	for k, v := range optional {
		if v != "" {
			conn[k] = v
		}
	}
	if c.Connection.Port != 0 {
		conn["port"] = c.Connection.Port
	}

	log := map[string]any{
		"level":  strings.ToLower(c.Log.Level),
		"format": c.Log.Format,
	}
	if c.Log.SeqURL != "" {
		log["seq_url"] = c.Log.SeqURL
	}

	doc := map[string]any{
		"connection":  conn,
		"schema":      c.Schema,
		"logging":     c.Logging,
		"debounce_ms": c.Debounce.Milliseconds(),
		"log":         log,
	}
	if c.Table != "" {
		doc["table"] = c.Table
	}
	return doc
}

func formatCUEError(err error) string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// QualifiedTable resolves Table against Schema.
func (c Config) QualifiedTable() (store.Table, error) {
	return store.ParseTable(c.Table, c.Schema)
}

// DataSource returns the database/sql driver dialect name and DSN.
func (c Connection) DataSource() (driver, dsn string, err error) {
	dialect, err := store.DialectFor(c.Driver)
	if err != nil {
		return "", "", err
	}

	switch {
	case c.DSN != "":
		return dialect.Name, c.DSN, nil
	case dialect.Name == store.SQLite.Name:
		if c.Path == "" {
			return "", "", store.NewConfigurationError("connection", "sqlite requires a path")
		}
		return dialect.Name, c.Path, nil
	default:
		if c.Host == "" || c.Database == "" {
			return "", "", store.NewConfigurationError("connection", "postgres requires host and database")
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   c.Host,
			Path:   "/" + c.Database,
		}
		if c.Port != 0 {
			u.Host = c.Host + ":" + strconv.Itoa(c.Port)
		}
		if c.User != "" {
			if c.Password != "" {
				u.User = url.UserPassword(c.User, c.Password)
			} else {
				u.User = url.User(c.User)
			}
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
		}
		return dialect.Name, u.String(), nil
	}
}
