package advisor

import (
	"regexp"
	"strings"
)

const literalToken = "$lit"

var (
	castRe  = regexp.MustCompile(`::\s*"?[A-Za-z_][A-Za-z0-9_]*"?(\s+(without|with)\s+time\s+zone|\s+varying|\s+precision)?(\[\])?`)
	tokenRe = regexp.MustCompile(`\$lit|"[^"]*"(\.("[^"]*"|[A-Za-z_][A-Za-z0-9_$]*))*|[A-Za-z_][A-Za-z0-9_$]*(\.("[^"]*"|[A-Za-z_][A-Za-z0-9_$]*))*|[0-9]+(\.[0-9]+)?|!~~\*|!~~|~~\*|~~|->>|->|<>|!=|<=|>=|<@|@>|\?\||\?&|&&|@@|=|<|>|\?|[(),]`)
	identRe = regexp.MustCompile(`^("[^"]*"|[A-Za-z_][A-Za-z0-9_$]*)$`)
)

var columnOperators = map[string]struct{}{
	"=": {}, "<>": {}, "!=": {}, "<": {}, ">": {}, "<=": {}, ">=": {},
	"~~": {}, "~~*": {}, "!~~": {}, "!~~*": {},
	"LIKE": {}, "ILIKE": {}, "BETWEEN": {}, "IN": {},
	"@>": {}, "<@": {}, "?": {}, "?|": {}, "?&": {}, "&&": {}, "@@": {},
}

// nonColumnWords are identifiers that can sit next to an operator without naming a column.
var nonColumnWords = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "NULL": {}, "TRUE": {}, "FALSE": {},
	"ANY": {}, "ALL": {}, "SOME": {}, "IS": {}, "ARRAY": {}, "CASE": {},
	"WHEN": {}, "THEN": {}, "ELSE": {}, "END": {}, "ESCAPE": {},
	"LIKE": {}, "ILIKE": {}, "BETWEEN": {}, "IN": {},
}

var orderingWords = map[string]struct{}{
	"ASC": {}, "DESC": {}, "NULLS": {}, "FIRST": {}, "LAST": {}, "USING": {}, "COLLATE": {},
}

// expr is a filter expression split into tokens with its string literals set aside.
type expr struct {
	tokens   []string
	literals []string
}

func lex(s string) expr {
	stripped, literals := stripLiterals(s)
	stripped = castRe.ReplaceAllString(stripped, " ")
	return expr{tokens: tokenRe.FindAllString(stripped, -1), literals: literals}
}

// stripLiterals replaces every single-quoted literal with a placeholder token
// and returns the literal contents in order. Doubled quotes are unescaped.
func stripLiterals(s string) (string, []string) {
	var out strings.Builder
	var literals []string
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			out.WriteByte(s[i])
			continue
		}
		var lit strings.Builder
		j := i + 1
		for ; j < len(s); j++ {
			if s[j] == '\'' {
				if j+1 < len(s) && s[j+1] == '\'' {
					lit.WriteByte('\'')
					j++
					continue
				}
				break
			}
			lit.WriteByte(s[j])
		}
		literals = append(literals, lit.String())
		out.WriteString(" " + literalToken + " ")
		i = j
	}
	return out.String(), literals
}

func upper(tok string) string {
	return strings.ToUpper(tok)
}

func isOperator(tok string) bool {
	_, ok := columnOperators[upper(tok)]
	return ok
}

func isQualified(tok string) bool {
	return !identRe.MatchString(tok) && strings.Contains(tok, ".") && !isNumber(tok)
}

func isNumber(tok string) bool {
	return tok != "" && tok[0] >= '0' && tok[0] <= '9'
}

func isBareColumn(tok string) bool {
	if tok == literalToken || !identRe.MatchString(tok) {
		return false
	}
	if strings.HasPrefix(tok, `"`) {
		return true
	}
	_, kw := nonColumnWords[upper(tok)]
	return !kw
}

func unquote(tok string) string {
	return strings.Trim(tok, `"`)
}

// lastPart returns the column part of a qualified reference such as t."Col".
func lastPart(tok string) string {
	idx := strings.LastIndex(tok, ".")
	if strings.HasSuffix(tok, `"`) {
		if open := strings.LastIndex(tok[:len(tok)-1], `"`); open > 0 {
			idx = open - 1
		}
	}
	return unquote(tok[idx+1:])
}

// filterColumns extracts column names from a filter expression: qualified
// table.column references and bare identifiers adjacent to comparison or
// pattern operators, deduplicated in first-seen order.
func filterColumns(e expr) []string {
	var cols []string
	seen := map[string]struct{}{}
	add := func(col string) {
		if col == "" {
			return
		}
		if _, ok := seen[col]; ok {
			return
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}

	toks := e.tokens
	for i, tok := range toks {
		switch {
		case isQualified(tok):
			add(lastPart(tok))
		case isOperator(tok):
			j := i - 1
			for j >= 0 && (toks[j] == ")" || upper(toks[j]) == "NOT") {
				j--
			}
			if j >= 0 && isBareColumn(toks[j]) {
				add(unquote(toks[j]))
			}
			k := i + 1
			for k < len(toks) && toks[k] == "(" {
				k++
			}
			if k < len(toks) && isBareColumn(toks[k]) && !isOperator(toks[k]) {
				if k+1 >= len(toks) || toks[k+1] != "(" {
					add(unquote(toks[k]))
				}
			}
		}
	}
	return cols
}

// sortColumn picks the column named by one sort key: a qualified reference
// when present, otherwise the last identifier that is not an ordering keyword.
func sortColumn(key string) string {
	e := lex(key)
	for _, tok := range e.tokens {
		if isQualified(tok) {
			return lastPart(tok)
		}
	}
	for i := len(e.tokens) - 1; i >= 0; i-- {
		tok := e.tokens[i]
		if _, ok := orderingWords[upper(tok)]; ok {
			continue
		}
		if isBareColumn(tok) {
			if i+1 < len(e.tokens) && e.tokens[i+1] == "(" {
				continue
			}
			return unquote(tok)
		}
	}
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return ""
	}
	return unquote(fields[len(fields)-1])
}

func sortColumns(keys []string) []string {
	cols := make([]string, 0, len(keys))
	seen := map[string]struct{}{}
	for _, key := range keys {
		col := sortColumn(key)
		if col == "" {
			continue
		}
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	return cols
}
