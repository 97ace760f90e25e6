package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		defaultSchema string
		want          Table
	}{
		{"bare uses default", "items", "tk", Table{Schema: "tk", Name: "items"}},
		{"dotted overrides default", "public.users", "tk", Table{Schema: "public", Name: "users"}},
		{"whitespace trimmed", "  items ", "tk", Table{Schema: "tk", Name: "items"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTable(tt.input, tt.defaultSchema)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTable_Errors(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		defaultSchema string
	}{
		{"empty", "", "tk"},
		{"empty table part", "tk.", "tk"},
		{"empty schema part", ".items", "tk"},
		{"no default schema", "items", ""},
		{"too many dots", "a.b.c", "tk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable(tt.input, tt.defaultSchema)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestTable_String(t *testing.T) {
	assert.Equal(t, "tk.items", Table{Schema: "tk", Name: "items"}.String())
	assert.Equal(t, "items", Table{Name: "items"}.String())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"plain"`, quoteIdent("plain"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
	assert.Equal(t, `"tk"."items"`, Table{Schema: "tk", Name: "items"}.qualified())
}

func TestError_Helpers(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("flush: %w", NewGatewayError("upsert", itemsTable, cause))

	assert.True(t, IsGatewayError(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "flush: GATEWAY: upsert tk.items: disk full", err.Error())

	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Equal(t, "NOT_FOUND: open tk.items: table does not exist", NewNotFoundError("open", itemsTable).Error())
	assert.Equal(t, "CONFIGURATION: parse table: table name is required", NewConfigurationError("parse table", "table name is required").Error())
}
