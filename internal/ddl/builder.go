// Package ddl builds DuckDB DDL statements for tables, enum types, views,
// parquet exports and object-storage secrets.
package ddl

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnDef describes a column for CREATE TABLE.
type ColumnDef struct {
	Name    string
	Type    string
	NotNull bool
}

// CreateTable returns a DuckDB DDL statement:
// CREATE TABLE "<table>" ("<col1>" TYPE1 [NOT NULL], ...).
func CreateTable(table string, columns []ColumnDef) (string, error) {
	name, err := QualifiedName(table)
	if err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	colDefs := make([]string, 0, len(columns))
	for _, c := range columns {
		if err := ValidateIdentifier(c.Name); err != nil {
			return "", fmt.Errorf("invalid column name %q: %w", c.Name, err)
		}
		if err := ValidateColumnType(c.Type); err != nil {
			return "", fmt.Errorf("invalid column type for %q: %w", c.Name, err)
		}
		def := fmt.Sprintf("%s %s", QuoteIdentifier(c.Name), c.Type)
		if c.NotNull {
			def += " NOT NULL"
		}
		colDefs = append(colDefs, def)
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(colDefs, ", ")), nil
}

// CreateTableAs returns a DuckDB DDL statement materializing a query:
// CREATE TABLE "<table>" AS <query>.
func CreateTableAs(table, query string) (string, error) {
	name, err := QualifiedName(table)
	if err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("table query is required")
	}
	return fmt.Sprintf("CREATE TABLE %s AS %s", name, query), nil
}

// DropTable returns a DuckDB DDL statement: DROP TABLE [IF EXISTS] "<table>".
func DropTable(table string, ifExists bool) (string, error) {
	name, err := QualifiedName(table)
	if err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if ifExists {
		return "DROP TABLE IF EXISTS " + name, nil
	}
	return "DROP TABLE " + name, nil
}

// CreateEnumType returns a DuckDB DDL statement:
// CREATE TYPE "<name>" AS ENUM ('v1', 'v2', ...).
func CreateEnumType(name string, values []string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid type name: %w", err)
	}
	if len(values) == 0 {
		return "", fmt.Errorf("enum type %q needs at least one value", name)
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteLiteral(v)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", QuoteIdentifier(name), strings.Join(quoted, ", ")), nil
}

// CreateView returns a DuckDB DDL statement:
// CREATE [OR REPLACE] VIEW "<name>" AS <query>.
// The query is trusted SQL produced by the caller.
func CreateView(view, query string, replace bool) (string, error) {
	name, err := QualifiedName(view)
	if err != nil {
		return "", fmt.Errorf("invalid view name: %w", err)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("view query is required")
	}
	verb := "CREATE VIEW"
	if replace {
		verb = "CREATE OR REPLACE VIEW"
	}
	return fmt.Sprintf("%s %s AS %s", verb, name, query), nil
}

// CopyToParquet returns a DuckDB statement writing the result of query to a
// parquet file, attaching metadata as parquet key/value pairs:
//
//	COPY (<query>) TO '<path>' (FORMAT PARQUET, KV_METADATA {k: 'v'})
func CopyToParquet(query, path string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if path == "" {
		return "", fmt.Errorf("destination path is required")
	}

	opts := "FORMAT PARQUET"
	if len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			if err := ValidateIdentifier(k); err != nil {
				return "", fmt.Errorf("invalid metadata key: %w", err)
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s: %s", k, QuoteLiteral(metadata[k]))
		}
		opts += ", KV_METADATA {" + strings.Join(pairs, ", ") + "}"
	}

	return fmt.Sprintf("COPY (%s) TO %s (%s)", query, QuoteLiteral(path), opts), nil
}

// CreateS3Secret returns a DuckDB DDL statement to create an S3 secret.
// Empty optional settings are omitted so DuckDB falls back to its defaults.
func CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid secret name: %w", err)
	}
	if keyID == "" || secret == "" {
		return "", fmt.Errorf("key id and secret are required")
	}

	lines := []string{
		"TYPE S3",
		"KEY_ID " + QuoteLiteral(keyID),
		"SECRET " + QuoteLiteral(secret),
	}
	if endpoint != "" {
		lines = append(lines, "ENDPOINT "+QuoteLiteral(endpoint))
	}
	if region != "" {
		lines = append(lines, "REGION "+QuoteLiteral(region))
	}
	if urlStyle != "" {
		lines = append(lines, "URL_STYLE "+QuoteLiteral(urlStyle))
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (\n\t%s\n)", QuoteIdentifier(name), strings.Join(lines, ",\n\t")), nil
}

// LoadExtension returns the statements installing and loading a DuckDB extension.
func LoadExtension(name string) ([]string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("invalid extension name: %w", err)
	}
	return []string{"INSTALL " + name, "LOAD " + name}, nil
}
