package advisor

import "strings"

// Shape is the kind of index an advice recommends.
type Shape string

const (
	ShapeBTree   Shape = "btree"
	ShapeTrigram Shape = "trigram"
	ShapeGIN     Shape = "gin"
	ShapeBRIN    Shape = "brin"
)

// Method returns the access method used in CREATE INDEX ... USING.
func (s Shape) Method() string {
	switch s {
	case ShapeTrigram, ShapeGIN:
		return "gin"
	case ShapeBRIN:
		return "brin"
	default:
		return "btree"
	}
}

// ShapeInput carries everything the shape decision looks at.
type ShapeInput struct {
	Filter       string
	SortKeys     []string
	RelPages     int64
	Columns      []string
	BRINMinPages int64
}

// Choice is the outcome of the shape decision.
type Choice struct {
	Shape   Shape
	Columns []string
	// Opclass is appended to each column in the DDL (trigram only).
	Opclass string
	Note    string
}

type shapeRule struct {
	matches func(in ShapeInput, e expr) bool
	choose  func(in ShapeInput) Choice
}

// shapeRules is evaluated top to bottom; the first matching rule wins.
var shapeRules = []shapeRule{
	{
		matches: func(in ShapeInput, _ expr) bool { return len(in.SortKeys) > 0 },
		choose: func(in ShapeInput) Choice {
			return Choice{Shape: ShapeBTree, Columns: in.Columns}
		},
	},
	{
		matches: func(_ ShapeInput, e expr) bool { return hasLike(e) && hasUnanchoredPattern(e) },
		choose: func(in ShapeInput) Choice {
			return Choice{
				Shape:   ShapeTrigram,
				Columns: firstN(in.Columns, 1),
				Opclass: "gin_trgm_ops",
				Note:    "requires the pg_trgm extension",
			}
		},
	},
	{
		matches: func(_ ShapeInput, e expr) bool { return hasAny(e, containmentOps) },
		choose: func(in ShapeInput) Choice {
			return Choice{Shape: ShapeGIN, Columns: firstN(in.Columns, 3)}
		},
	},
	{
		matches: func(in ShapeInput, e expr) bool {
			return hasAny(e, rangeOps) && in.RelPages >= in.BRINMinPages
		},
		choose: func(in ShapeInput) Choice {
			return Choice{Shape: ShapeBRIN, Columns: firstN(in.Columns, 3)}
		},
	},
	{
		matches: func(ShapeInput, expr) bool { return true },
		choose: func(in ShapeInput) Choice {
			return Choice{Shape: ShapeBTree, Columns: firstN(in.Columns, 3)}
		},
	},
}

var (
	likeOps        = map[string]struct{}{"LIKE": {}, "ILIKE": {}, "~~": {}, "~~*": {}, "!~~": {}, "!~~*": {}}
	containmentOps = map[string]struct{}{"@>": {}, "<@": {}, "?": {}, "?|": {}, "?&": {}, "&&": {}, "@@": {}}
	rangeOps       = map[string]struct{}{"<": {}, ">": {}, "<=": {}, ">=": {}, "BETWEEN": {}}
)

// ChooseShape runs the ordered decision list.
func ChooseShape(in ShapeInput) Choice {
	if in.BRINMinPages <= 0 {
		in.BRINMinPages = defaultBRINMinPages
	}
	e := lex(in.Filter)
	for _, rule := range shapeRules {
		if rule.matches(in, e) {
			return rule.choose(in)
		}
	}
	return Choice{Shape: ShapeBTree, Columns: firstN(in.Columns, 3)}
}

func hasAny(e expr, ops map[string]struct{}) bool {
	for _, tok := range e.tokens {
		if _, ok := ops[upper(tok)]; ok {
			return true
		}
	}
	return false
}

func hasLike(e expr) bool {
	return hasAny(e, likeOps)
}

// hasUnanchoredPattern reports a literal with a leading or embedded % wildcard.
func hasUnanchoredPattern(e expr) bool {
	for _, lit := range e.literals {
		if strings.Contains(strings.TrimRight(lit, "%"), "%") {
			return true
		}
	}
	return false
}

func firstN(cols []string, n int) []string {
	if len(cols) <= n {
		return cols
	}
	return cols[:n]
}
