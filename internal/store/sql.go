package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tablemirror/internal/value"
)

// Statement is one SQL statement with its bind arguments.
type Statement struct {
	SQL  string
	Args []any
}

// BuildSelect returns the unfiltered full-table scan used by Load.
// No ORDER BY: rows come back in the backend's natural storage order.
func BuildSelect(d Dialect, t Table) Statement {
	return Statement{SQL: "SELECT * FROM " + t.qualified()}
}

// BuildTableExists returns a statement yielding a single count.
func BuildTableExists(d Dialect, t Table) Statement {
	if d.Name == Postgres.Name {
		return Statement{
			SQL:  "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
			Args: []any{t.Schema, t.Name},
		}
	}
	return Statement{
		SQL:  "SELECT COUNT(*) FROM " + quoteIdent(t.Schema) + ".sqlite_master WHERE type IN ('table', 'view') AND name = ?",
		Args: []any{t.Name},
	}
}

// BuildColumns returns a statement yielding (name, declared type) pairs.
func BuildColumns(d Dialect, t Table) Statement {
	if d.Name == Postgres.Name {
		return Statement{
			SQL:  "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position",
			Args: []any{t.Schema, t.Name},
		}
	}
	return Statement{
		SQL:  "SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid",
		Args: []any{t.Name, t.Schema},
	}
}

// BuildUpsert returns the bulk insert-or-merge statements for rows.
//
// Every row must carry an integer "idx". The column list is idx followed by
// the sorted union of all other row keys; a row lacking a column binds NULL
// for it. Conflicts on idx merge into the existing record. Rows are split
// into several statements only when one would exceed the dialect's bind
// parameter limit.
func BuildUpsert(d Dialect, t Table, rows []value.Object) ([]Statement, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := []string{IdentityColumn}
	seen := map[string]bool{IdentityColumn: true}
	var extra []string
	for i, row := range rows {
		if _, ok := row[IdentityColumn].(value.Int); !ok {
			return nil, NewValidationError("upsert", t, fmt.Sprintf("row %d has no integer %s", i, IdentityColumn))
		}
		for k := range row {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	cols = append(cols, extra...)

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}

	conflict := " ON CONFLICT (" + quoteIdent(IdentityColumn) + ") DO NOTHING"
	if len(extra) > 0 {
		sets := make([]string, len(extra))
		for i, c := range extra {
			sets[i] = quoteIdent(c) + " = excluded." + quoteIdent(c)
		}
		conflict = " ON CONFLICT (" + quoteIdent(IdentityColumn) + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}

	perStmt := max(1, d.MaxParams/len(cols))
	var stmts []Statement
	for start := 0; start < len(rows); start += perStmt {
		chunk := rows[start:min(start+perStmt, len(rows))]

		var sb strings.Builder
		sb.WriteString("INSERT INTO ")
		sb.WriteString(t.qualified())
		sb.WriteString(" (")
		sb.WriteString(strings.Join(quoted, ", "))
		sb.WriteString(") VALUES ")

		args := make([]any, 0, len(chunk)*len(cols))
		for r, row := range chunk {
			if r > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for c, col := range cols {
				if c > 0 {
					sb.WriteString(", ")
				}
				arg, err := encodeArg(row[col])
				if err != nil {
					return nil, NewValidationError("upsert", t, fmt.Sprintf("column %q: %v", col, err))
				}
				args = append(args, arg)
				sb.WriteString(d.Placeholder(len(args)))
			}
			sb.WriteByte(')')
		}
		sb.WriteString(conflict)

		stmts = append(stmts, Statement{SQL: sb.String(), Args: args})
	}
	return stmts, nil
}

// BuildDelete returns the bulk delete statements for identities.
func BuildDelete(d Dialect, t Table, ids []int64) []Statement {
	if len(ids) == 0 {
		return nil
	}

	var stmts []Statement
	for start := 0; start < len(ids); start += d.MaxParams {
		chunk := ids[start:min(start+d.MaxParams, len(ids))]

		marks := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			marks[i] = d.Placeholder(i + 1)
			args[i] = id
		}
		stmts = append(stmts, Statement{
			SQL:  "DELETE FROM " + t.qualified() + " WHERE " + quoteIdent(IdentityColumn) + " IN (" + strings.Join(marks, ", ") + ")",
			Args: args,
		})
	}
	return stmts
}

// BuildInsert returns a single-row INSERT over the given fields, in
// sorted column order.
func BuildInsert(d Dialect, t Table, fields value.Object) (Statement, error) {
	cols := sortedKeys(fields)
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		arg, err := encodeArg(fields[c])
		if err != nil {
			return Statement{}, NewValidationError("insert", t, fmt.Sprintf("column %q: %v", c, err))
		}
		quoted[i] = quoteIdent(c)
		marks[i] = d.Placeholder(i + 1)
		args[i] = arg
	}
	return Statement{
		SQL:  "INSERT INTO " + t.qualified() + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")",
		Args: args,
	}, nil
}

// BuildUpdate returns a single-row UPDATE keyed on idx.
func BuildUpdate(d Dialect, t Table, idx int64, fields value.Object) (Statement, error) {
	cols := sortedKeys(fields)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		arg, err := encodeArg(fields[c])
		if err != nil {
			return Statement{}, NewValidationError("update", t, fmt.Sprintf("column %q: %v", c, err))
		}
		args = append(args, arg)
		sets[i] = quoteIdent(c) + " = " + d.Placeholder(len(args))
	}
	args = append(args, idx)
	return Statement{
		SQL:  "UPDATE " + t.qualified() + " SET " + strings.Join(sets, ", ") + " WHERE " + quoteIdent(IdentityColumn) + " = " + d.Placeholder(len(args)),
		Args: args,
	}, nil
}

// BuildSelectOne returns a single-row read keyed on idx.
func BuildSelectOne(d Dialect, t Table, idx int64) Statement {
	return Statement{
		SQL:  "SELECT * FROM " + t.qualified() + " WHERE " + quoteIdent(IdentityColumn) + " = " + d.Placeholder(1),
		Args: []any{idx},
	}
}

func sortedKeys(obj value.Object) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
