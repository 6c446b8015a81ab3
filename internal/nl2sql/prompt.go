package nl2sql

import (
	"strings"
)

const ruler = "-------------------------------------------"

// BuildPrompt renders the generation prompt. The schema and question are
// embedded verbatim; an empty schema still produces a complete prompt.
func BuildPrompt(question, schema string) string {
	var b strings.Builder
	b.WriteString("You are an expert Database Engineer and Data Analyst.\n\n")
	b.WriteString("Your goal is to generate valid PostgreSQL queries based on the user's question.\n\n")
	b.WriteString("Here is the Database Schema in JSON format:\n")
	b.WriteString(ruler + "\n")
	b.WriteString(schema + "\n")
	b.WriteString(ruler + "\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("1. Return ONLY the SQL code. No markdown (```sql), no explanations.\n")
	b.WriteString("2. Use the table names and column names exactly as defined in the schema.\n")
	b.WriteString("3. Pay close attention to the 'relationships' and 'business_logic' in the schema.\n")
	b.WriteString("4. For profit calculations, use the formula: (Sales Revenue - Purchase Cost).\n\n")
	b.WriteString("Here's user's question:\n")
	b.WriteString(question + "\n")
	return b.String()
}

// StripCodeFences removes every ```sql and ``` marker and trims the result.
func StripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```sql", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
