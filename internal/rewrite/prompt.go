package rewrite

import "fmt"

const systemPrompt = "You are a senior database engineer and SQL optimizer. " +
	"Given a SQL query, produce N improved alternatives while preserving the original result semantics by default. " +
	"Prefer standard SQL; if dialect-specific, call it out explicitly. " +
	"Focus on correctness, then performance and readability. " +
	"Return ONLY valid JSON."

func userPrompt(dialect, sqlText string, n int) string {
	return fmt.Sprintf(`Dialect: %s.

Original SQL:
<<<SQL
%s
SQL>>>

Produce exactly %d improved variants.

Answer with a single JSON object with the key "candidates": a list of objects with
- sql: the improved SQL
- explanation: 2-5 sentences on what changed and why it is better
- changes: array of short bullet points
- semantics: "preserved" | "narrower" | "broader" (and why, if not preserved)
- assumptions: explicit assumptions (indexes, table sizes, cardinalities)
- tags: array of tags, e.g. ["performance","readability","standard_sql","postgres"]

Rules:
- Do not change the business meaning unless necessary; if you do, say so in semantics.
- No text outside the JSON.`, dialect, sqlText, n)
}
