//go:build mssql || all_adapters

package mssql

import (
	"fmt"
	"strings"
)

// parseSchemaTable parses a table name that may include schema.
// SQL Server format: [schema].[table] or schema.table
// Returns (schema, table). Defaults to "dbo" schema if not specified.
func parseSchemaTable(tableName string) (string, string) {
	cleaned := strings.ReplaceAll(tableName, "[", "")
	cleaned = strings.ReplaceAll(cleaned, "]", "")

	parts := strings.Split(cleaned, ".")
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}

	// Default schema is "dbo" in SQL Server
	return "dbo", cleaned
}

// quoteName quotes an identifier using SQL Server's square bracket syntax,
// escaping ] as ]] the way QUOTENAME() does.
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// mapSQLServerType maps SQL Server type names to standard type names.
// This provides a consistent interface across different database adapters.
func mapSQLServerType(sqlServerType string) string {
	sqlServerType = strings.ToUpper(sqlServerType)

	switch sqlServerType {
	// Integer types
	case "TINYINT":
		return "TINYINT"
	case "SMALLINT":
		return "SMALLINT"
	case "INT":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"

	// Decimal types
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "REAL":
		return "REAL"

	// String types
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"

	// Binary types
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "IMAGE":
		return "BLOB"

	// Date/Time types
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"

	// Boolean
	case "BIT":
		return "BOOLEAN"

	// UUID/GUID
	case "UNIQUEIDENTIFIER":
		return "UUID"

	// Other types - return as-is
	default:
		return sqlServerType
	}
}

// isStringType returns true if the type is a string type in SQL Server.
func isStringType(sqlType string) bool {
	sqlType = strings.ToUpper(sqlType)
	stringTypes := []string{
		"CHAR", "NCHAR", "VARCHAR", "NVARCHAR",
		"TEXT", "NTEXT",
	}

	for _, t := range stringTypes {
		if sqlType == t {
			return true
		}
	}
	return false
}
