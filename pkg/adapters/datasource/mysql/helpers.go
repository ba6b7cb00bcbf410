//go:build mysql || all_adapters

package mysql

import (
	"fmt"
	"strconv"
	"strings"
)

// splitQualified splits a possibly schema-qualified table name into schema
// and table parts. Backtick quoting is stripped. An empty schema means the
// connected database's default schema.
func splitQualified(tableName string) (string, string) {
	cleaned := strings.ReplaceAll(tableName, "`", "")

	if schema, table, found := strings.Cut(cleaned, "."); found && schema != "" {
		return schema, table
	}
	return "", cleaned
}

// quoteName quotes an identifier using MySQL's backtick syntax, escaping
// embedded backticks by doubling them.
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "`", "``")
	return fmt.Sprintf("`%s`", escaped)
}

// convertValue normalizes a scanned value using the column's reported type.
// The MySQL text protocol delivers almost every column as []byte, so numbers
// are parsed back out and text becomes string; binary types stay raw.
func convertValue(val any, dbType string) any {
	b, ok := val.([]byte)
	if !ok {
		return val
	}

	switch strings.TrimPrefix(strings.ToUpper(dbType), "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case "DECIMAL", "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "BIT", "GEOMETRY":
		return b
	}

	return string(b)
}

// mapMySQLType maps MySQL type names to standard type names.
// This provides a consistent interface across different database adapters.
func mapMySQLType(mysqlType string) string {
	mysqlType = strings.ToUpper(mysqlType)

	switch mysqlType {
	// Integer types
	case "TINYINT":
		return "TINYINT"
	case "SMALLINT":
		return "SMALLINT"
	case "MEDIUMINT", "INT":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"

	// Decimal types
	case "DECIMAL":
		return "NUMERIC"
	case "FLOAT":
		return "REAL"
	case "DOUBLE":
		return "DOUBLE PRECISION"

	// String types
	case "CHAR":
		return "CHAR"
	case "VARCHAR":
		return "VARCHAR"
	case "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return "TEXT"
	case "ENUM", "SET":
		return "VARCHAR"

	// Binary types
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB":
		return "BLOB"

	// Date/Time types
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP"
	case "YEAR":
		return "SMALLINT"

	// JSON
	case "JSON":
		return "JSON"

	// Other types - return as-is
	default:
		return mysqlType
	}
}
