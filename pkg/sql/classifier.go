package sql

import (
	"regexp"
	"strconv"
	"strings"
)

// StatementKind is the coarse category of a statement's effect. Classification
// looks only at the leading keyword of a normalized statement; it never
// validates the rest, because a generated query's logic is the caller's
// problem — only its category of effect is ours.
type StatementKind string

const (
	KindRead             StatementKind = "read"
	KindSchemaDefinition StatementKind = "schema-definition"
	KindDataMutation     StatementKind = "data-mutation"
	KindDataDeletion     StatementKind = "data-deletion"
	KindUnsafeUnknown    StatementKind = "unsafe-unknown"
)

// ValidStatementKinds contains every kind a policy may grant. KindUnsafeUnknown
// is deliberately absent: no policy can express it.
var ValidStatementKinds = []StatementKind{
	KindRead,
	KindSchemaDefinition,
	KindDataMutation,
	KindDataDeletion,
}

// IsValidStatementKind checks if the given kind is grantable.
func IsValidStatementKind(k StatementKind) bool {
	for _, v := range ValidStatementKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ClassifiedQuery is a statement plus its inferred kind. Transient: produced
// and consumed within a single request.
type ClassifiedQuery struct {
	Query  string        // normalized statement
	Kind   StatementKind // inferred category of effect
	Tables []string      // shallow table references, for audit and routing

	// UnsafeReason explains a KindUnsafeUnknown classification.
	UnsafeReason string
}

// leading verbs → kind. Statements led by anything else are unsafe-unknown.
var kindByVerb = map[string]StatementKind{
	"SELECT":   KindRead,
	"WITH":     KindRead,
	"SHOW":     KindRead,
	"DESCRIBE": KindRead,
	"DESC":     KindRead,
	"EXPLAIN":  KindRead,
	"CREATE":   KindSchemaDefinition,
	"ALTER":    KindSchemaDefinition,
	"INSERT":   KindDataMutation,
	"UPDATE":   KindDataMutation,
	"REPLACE":  KindDataMutation,
	"MERGE":    KindDataMutation,
	"DELETE":   KindDataDeletion,
	"DROP":     KindDataDeletion,
	"TRUNCATE": KindDataDeletion,
}

var (
	// modifyingCTEPattern matches CTEs that smuggle data-modifying operations
	// behind a WITH, e.g. WITH gone AS (DELETE FROM t RETURNING *) SELECT ...
	modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

	// dropScopePattern matches statements that would remove a whole database
	// or schema. Blocked outright, for every role.
	dropScopePattern = regexp.MustCompile(`(?i)^DROP\s+(DATABASE|SCHEMA)\b`)

	// tableRefPatterns pull out shallow table references. Best effort only.
	tableRefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		regexp.MustCompile(`(?i)\bJOIN\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		regexp.MustCompile(`(?i)\bINTO\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		regexp.MustCompile(`(?i)^UPDATE\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		regexp.MustCompile(`(?i)\bTABLE\s+(?:IF\s+(?:NOT\s+)?EXISTS\s+)?([A-Za-z_][A-Za-z0-9_.]*)`),
	}
)

// Classify normalizes a statement and infers its StatementKind.
//
// Rules, in order:
//  1. An empty statement is unsafe-unknown.
//  2. A semicolon outside string literals (after the trailing one is
//     stripped) means chained statements: unsafe-unknown regardless of the
//     first keyword.
//  3. A string literal carrying an injection fingerprint is unsafe-unknown.
//  4. DROP DATABASE / DROP SCHEMA is unsafe-unknown.
//  5. Otherwise the leading verb decides; a WITH whose CTE body modifies data
//     escalates from read to data-mutation; unrecognized verbs are
//     unsafe-unknown.
func Classify(rawQuery string) ClassifiedQuery {
	normalized := Normalize(rawQuery)

	if normalized == "" {
		return ClassifiedQuery{
			Query:        normalized,
			Kind:         KindUnsafeUnknown,
			UnsafeReason: "empty statement",
		}
	}

	if HasSeparator(normalized) {
		return ClassifiedQuery{
			Query:        normalized,
			Kind:         KindUnsafeUnknown,
			UnsafeReason: "statement separator present; chained statements are not classifiable",
		}
	}

	if res := checkLiteralsForInjection(normalized); res != nil {
		return ClassifiedQuery{
			Query:        normalized,
			Kind:         KindUnsafeUnknown,
			UnsafeReason: "injection pattern in string literal (fingerprint " + res.Fingerprint + ")",
		}
	}

	upper := strings.ToUpper(normalized)

	if dropScopePattern.MatchString(upper) {
		return ClassifiedQuery{
			Query:        normalized,
			Kind:         KindUnsafeUnknown,
			UnsafeReason: "database/schema-scoped drop is never permitted",
			Tables:       extractTables(normalized),
		}
	}

	verb := leadingVerb(upper)
	kind, ok := kindByVerb[verb]
	if !ok {
		return ClassifiedQuery{
			Query:        normalized,
			Kind:         KindUnsafeUnknown,
			UnsafeReason: "unrecognized leading keyword " + strconv.Quote(verb),
		}
	}

	if verb == "WITH" && modifyingCTEPattern.MatchString(normalized) {
		kind = KindDataMutation
	}

	return ClassifiedQuery{
		Query:  normalized,
		Kind:   kind,
		Tables: extractTables(normalized),
	}
}

// leadingVerb returns the first keyword token of an upper-cased statement.
func leadingVerb(upperSQL string) string {
	start := 0
	for start < len(upperSQL) {
		c := upperSQL[start]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '(' {
			break
		}
		start++
	}
	end := start
	for end < len(upperSQL) {
		c := upperSQL[end]
		if (c < 'A' || c > 'Z') && c != '_' {
			break
		}
		end++
	}
	return upperSQL[start:end]
}

// extractTables collects shallow table references, deduplicated, lowercased,
// in first-seen order.
func extractTables(sqlQuery string) []string {
	seen := make(map[string]struct{})
	var tables []string
	for _, pattern := range tableRefPatterns {
		for _, match := range pattern.FindAllStringSubmatch(sqlQuery, -1) {
			if len(match) < 2 {
				continue
			}
			name := strings.ToLower(match[1])
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
	}
	return tables
}
