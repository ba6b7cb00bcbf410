package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that may appear at the start of model responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// fencePattern matches a markdown code fence with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\\n?(.*?)```")

// sqlLabelPattern matches a leading "SQL:" label echoed from the prompt.
var sqlLabelPattern = regexp.MustCompile(`(?i)^sql\s*:\s*`)

// ExtractSQL pulls the SQL statement out of a raw model response.
//
// The prompt asks for bare SQL, but models still wrap the query in markdown
// fences or surround it with prose. When a fenced block is present its content
// is the query and everything outside it is returned as commentary; otherwise
// the whole response is treated as the query. A leading "SQL:" label is
// dropped either way.
func ExtractSQL(response string) (query string, commentary string) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if loc := fencePattern.FindStringSubmatchIndex(cleaned); loc != nil {
		query = stripSQLLabel(cleaned[loc[2]:loc[3]])
		commentary = joinCommentary(cleaned[:loc[0]], cleaned[loc[1]:])
		return query, commentary
	}

	return stripSQLLabel(cleaned), ""
}

// stripSQLLabel trims whitespace and a leading "SQL:" prompt echo.
func stripSQLLabel(s string) string {
	s = strings.TrimSpace(s)
	s = sqlLabelPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// joinCommentary merges the text before and after a fenced block.
func joinCommentary(before, after string) string {
	before = strings.TrimSpace(before)
	after = strings.TrimSpace(after)

	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + " " + after
	}
}
