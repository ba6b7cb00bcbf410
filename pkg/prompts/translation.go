// Package prompts builds the prompt text sent to translation models.
package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultLanguage is used for explanations when the caller does not ask for one.
const DefaultLanguage = "English"

// maxSampleRows caps the example rows included per table in the schema context.
const maxSampleRows = 5

// explanationSampleRows caps the result rows included in an explanation prompt.
const explanationSampleRows = 5

// TableContext describes one table or uploaded dataset for prompt building.
type TableContext struct {
	Name    string
	Columns []string
	// SampleRows holds example rows aligned with Columns. Optional; at most
	// maxSampleRows are included in the schema context.
	SampleRows [][]string
}

// RelationshipContext describes a join path between two tables.
type RelationshipContext struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
}

// BuildSchemaContext renders tables and relationships as the textual schema
// block embedded in translation prompts:
//
//	Database: library_db
//	Tables:
//	1. authors(author_id, name, country)
//	2. books(book_id, title, author_id)
//	Relationships:
//	- books.author_id -> authors.author_id
func BuildSchemaContext(database string, tables []TableContext, relationships []RelationshipContext) string {
	var ctx strings.Builder

	if database != "" {
		ctx.WriteString(fmt.Sprintf("Database: %s\n", database))
	}

	ctx.WriteString("Tables:\n")
	for i, table := range tables {
		ctx.WriteString(fmt.Sprintf("%d. %s(%s)\n", i+1, table.Name, strings.Join(table.Columns, ", ")))
		if len(table.SampleRows) > 0 {
			rows := table.SampleRows
			if len(rows) > maxSampleRows {
				rows = rows[:maxSampleRows]
			}
			rendered := make([]string, len(rows))
			for j, row := range rows {
				rendered[j] = fmt.Sprintf("(%s)", strings.Join(row, ", "))
			}
			ctx.WriteString(fmt.Sprintf("   sample: %s\n", strings.Join(rendered, "; ")))
		}
	}

	if len(relationships) > 0 {
		ctx.WriteString("Relationships:\n")
		for _, rel := range relationships {
			ctx.WriteString(fmt.Sprintf("- %s.%s -> %s.%s\n",
				rel.SourceTable, rel.SourceColumn, rel.TargetTable, rel.TargetColumn))
		}
	}

	return strings.TrimRight(ctx.String(), "\n")
}

// BuildTranslationSystemMessage returns the system message for SQL generation.
// Viewers get a read-only instruction; editors and admins are allowed to ask
// for mutating statements. The generated SQL is classified and gated after
// translation regardless of what this message permits.
func BuildTranslationSystemMessage(allowMutations bool) string {
	role := "Only generate SELECT statements."
	if allowMutations {
		role = "You are allowed to generate DML and DDL statements (SELECT, INSERT, UPDATE, DELETE, ALTER, DROP) if the user request requires it."
	}

	return fmt.Sprintf(`You are an expert SQL generator. Convert natural language queries into valid SQL statements for the schema you are given.

Rules:
- %s
- Ensure all table and column names are valid.
- Respond with a single SQL statement.
- Do not include explanations or markdown.`, role)
}

// BuildTranslationPrompt creates the user prompt for SQL generation.
// Language names the language the question may be written in; English (or
// empty) adds nothing.
func BuildTranslationPrompt(question, schemaContext, language string) string {
	var prompt strings.Builder

	prompt.WriteString("Convert the following natural language query into a single valid SQL statement.\n\n")
	prompt.WriteString("Schema:\n")
	prompt.WriteString(schemaContext)
	prompt.WriteString("\n\n")
	if language != "" && !strings.EqualFold(language, DefaultLanguage) {
		prompt.WriteString(fmt.Sprintf("The query below may be written in %s.\n", language))
	}
	prompt.WriteString(fmt.Sprintf("Natural language query: %q\n", question))
	prompt.WriteString("SQL:\n")

	return prompt.String()
}

// BuildExplanationSystemMessage returns the system message for result explanations.
func BuildExplanationSystemMessage() string {
	return `You are a data analyst. You write short, clear explanations of SQL queries and their results for non-technical readers.`
}

// BuildExplanationPrompt creates the prompt asking for a 2-3 sentence summary
// of a query and a sample of its result rows, in the requested language.
func BuildExplanationPrompt(sqlQuery string, columns []string, rows []map[string]any, language string) string {
	if language == "" {
		language = DefaultLanguage
	}

	var prompt strings.Builder
	prompt.WriteString("Given the following SQL query and its result, write a short, clear explanation in 2-3 sentences about what this data represents.\n")
	prompt.WriteString(fmt.Sprintf("Respond in %s.\n\n", language))
	prompt.WriteString(fmt.Sprintf("SQL Query: %s\n", sqlQuery))
	prompt.WriteString(fmt.Sprintf("Query Result (sample of up to %d rows): %s\n", explanationSampleRows, formatResultSample(columns, rows)))
	prompt.WriteString("Explanation:\n")

	return prompt.String()
}

// formatResultSample renders up to explanationSampleRows rows in column order,
// falling back to sorted key order when the column list is empty.
func formatResultSample(columns []string, rows []map[string]any) string {
	if len(rows) > explanationSampleRows {
		rows = rows[:explanationSampleRows]
	}

	rendered := make([]string, len(rows))
	for i, row := range rows {
		keys := columns
		if len(keys) == 0 {
			keys = make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
		}

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			v, ok := row[k]
			if !ok {
				continue
			}
			if v == nil {
				pairs = append(pairs, fmt.Sprintf("%s: null", k))
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s: %v", k, v))
		}
		rendered[i] = fmt.Sprintf("{%s}", strings.Join(pairs, ", "))
	}

	return fmt.Sprintf("[%s]", strings.Join(rendered, ", "))
}
