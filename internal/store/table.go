package store

import (
	"fmt"
	"strings"
)

const (
	// DefaultWriteSchema is the schema a mirror writes to when none is given.
	DefaultWriteSchema = "tk"

	// DefaultReadSchema is the schema used for table discovery when none is given.
	DefaultReadSchema = "public"

	// IdentityColumn is the positional identity and upsert conflict key.
	IdentityColumn = "idx"
)

// Table is a schema-qualified table name.
type Table struct {
	Schema string
	Name   string
}

// String returns the dotted "schema.table" form.
func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ParseTable splits a "schema.table" name. A dotted name overrides
// defaultSchema; a bare name uses it.
//
// Returns a ConfigurationError for an empty table or schema part.
func ParseTable(name, defaultSchema string) (Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Table{}, NewConfigurationError("parse table", "table name is required")
	}

	t := Table{Schema: defaultSchema, Name: name}
	if schema, table, ok := strings.Cut(name, "."); ok {
		t = Table{Schema: schema, Name: table}
	}

	if t.Name == "" {
		return Table{}, NewConfigurationError("parse table", fmt.Sprintf("table name missing in %q", name))
	}
	if t.Schema == "" {
		return Table{}, NewConfigurationError("parse table", fmt.Sprintf("schema missing for %q", name))
	}
	if strings.Contains(t.Name, ".") {
		return Table{}, NewConfigurationError("parse table", fmt.Sprintf("too many separators in %q", name))
	}
	return t, nil
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// qualified returns the quoted "schema"."table" reference.
func (t Table) qualified() string {
	if t.Schema == "" {
		return quoteIdent(t.Name)
	}
	return quoteIdent(t.Schema) + "." + quoteIdent(t.Name)
}
