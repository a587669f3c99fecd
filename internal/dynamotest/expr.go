package dynamotest

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// exprLexer tokenizes the condition, key condition and update expressions
// rendered by the expression builder. Lowercase rules are elided.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z_]\w*`},
	{Name: "Name", Pattern: `#\w+`},
	{Name: "Value", Pattern: `:\w+`},
	{Name: "Op", Pattern: `<>|<=|>=|[=<>]`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "whitespace", Pattern: `\s+`},
})

var (
	conditionParser = participle.MustBuild[condition](
		participle.Lexer(exprLexer),
		participle.UseLookahead(2),
	)
	updateParser = participle.MustBuild[update](
		participle.Lexer(exprLexer),
	)
)

// condition is a disjunction of conjunctions. The builder parenthesizes
// every operand, so no further precedence levels are needed.
type condition struct {
	Or []*conjunction `parser:"@@ ( 'OR' @@ )*"`
}

type conjunction struct {
	And []*term `parser:"@@ ( 'AND' @@ )*"`
}

type term struct {
	Not        *term       `parser:"  'NOT' @@"`
	Group      *condition  `parser:"| '(' @@ ')'"`
	Function   *function   `parser:"| @@"`
	Comparison *comparison `parser:"| @@"`
}

type function struct {
	Name string `parser:"@Ident '('"`
	Path string `parser:"@Name"`
	Arg  string `parser:"( ',' @Value )? ')'"`
}

type comparison struct {
	Path  string `parser:"@Name"`
	Op    string `parser:"@Op"`
	Value string `parser:"@Value"`
}

type update struct {
	Set []*assignment `parser:"'SET' @@ ( ',' @@ )*"`
}

type assignment struct {
	Path  string `parser:"@Name '='"`
	Value string `parser:"@Value"`
}

// env is what an expression is evaluated against. item is nil when the
// key does not exist.
type env struct {
	item   map[string]types.AttributeValue
	names  map[string]string
	values map[string]types.AttributeValue
}

func (e env) attr(token string) (types.AttributeValue, bool) {
	v, ok := e.item[resolveName(token, e.names)]
	return v, ok
}

func (e env) value(token string) (types.AttributeValue, error) {
	v, ok := e.values[token]
	if !ok {
		return nil, fmt.Errorf("dynamotest: missing value %s", token)
	}
	return v, nil
}

var parsed sync.Map

// parseCondition parses expr once and caches the tree.
func parseCondition(expr string) (*condition, error) {
	if c, ok := parsed.Load(expr); ok {
		return c.(*condition), nil
	}
	c, err := conditionParser.ParseString("", expr)
	if err != nil {
		return nil, fmt.Errorf("dynamotest: unsupported condition %q: %w", expr, err)
	}
	parsed.Store(expr, c)
	return c, nil
}

// evalCondition reports whether expr holds for e. An empty expression holds.
func evalCondition(expr string, e env) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	c, err := parseCondition(expr)
	if err != nil {
		return false, err
	}
	return c.eval(e)
}

func (c *condition) eval(e env) (bool, error) {
	for _, conj := range c.Or {
		ok, err := conj.eval(e)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (c *conjunction) eval(e env) (bool, error) {
	for _, t := range c.And {
		ok, err := t.eval(e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (t *term) eval(e env) (bool, error) {
	switch {
	case t.Not != nil:
		ok, err := t.Not.eval(e)
		return !ok, err
	case t.Group != nil:
		return t.Group.eval(e)
	case t.Function != nil:
		return t.Function.eval(e)
	default:
		return t.Comparison.eval(e)
	}
}

func (f *function) eval(e env) (bool, error) {
	v, has := e.attr(f.Path)
	switch f.Name {
	case "attribute_exists":
		return has, nil
	case "attribute_not_exists":
		return !has, nil
	case "begins_with":
		arg, err := e.value(f.Arg)
		if err != nil {
			return false, err
		}
		s, ok := v.(*types.AttributeValueMemberS)
		prefix, pok := arg.(*types.AttributeValueMemberS)
		return ok && pok && strings.HasPrefix(s.Value, prefix.Value), nil
	}
	return false, fmt.Errorf("dynamotest: unsupported function %s", f.Name)
}

func (c *comparison) eval(e env) (bool, error) {
	right, err := e.value(c.Value)
	if err != nil {
		return false, err
	}
	left, has := e.attr(c.Path)
	if !has {
		return false, nil
	}

	switch c.Op {
	case "=":
		return reflect.DeepEqual(left, right), nil
	case "<>":
		return !reflect.DeepEqual(left, right), nil
	}

	cmp, ok := compare(left, right)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("dynamotest: unsupported operator %s", c.Op)
}

// compare orders two numbers or two strings. Mixed types do not compare.
func compare(a, b types.AttributeValue) (int, bool) {
	switch x := a.(type) {
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		fx, errX := strconv.ParseFloat(x.Value, 64)
		fy, errY := strconv.ParseFloat(y.Value, 64)
		if errX != nil || errY != nil {
			return 0, false
		}
		switch {
		case fx < fy:
			return -1, true
		case fx > fy:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Value, y.Value), true
	}
	return 0, false
}

// applyUpdate returns a copy of base with the SET clauses of expr applied.
func applyUpdate(expr string, base map[string]types.AttributeValue, e env) (map[string]types.AttributeValue, error) {
	u, err := updateParser.ParseString("", expr)
	if err != nil {
		return nil, fmt.Errorf("dynamotest: unsupported update %q: %w", expr, err)
	}

	out := clone(base)
	for _, a := range u.Set {
		v, err := e.value(a.Value)
		if err != nil {
			return nil, err
		}
		out[resolveName(a.Path, e.names)] = v
	}
	return out, nil
}
