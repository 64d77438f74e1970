package cargo

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cfgExpr is a parsed cfg(...) predicate.
type cfgExpr struct {
	op    string // "all", "any", "not", or "" for a key or key="value" test
	key   string
	value string
	isKV  bool
	args  []*cfgExpr
}

func (e *cfgExpr) eval(p Platform) bool {
	switch e.op {
	case "all":
		for _, a := range e.args {
			if !a.eval(p) {
				return false
			}
		}
		return true
	case "any":
		return slices.ContainsFunc(e.args, func(a *cfgExpr) bool { return a.eval(p) })
	case "not":
		return !e.args[0].eval(p)
	}
	if e.isKV {
		return p.has(e.key, e.value)
	}
	_, ok := p.cfg[e.key]
	return ok
}

type parsedCfg struct {
	expr *cfgExpr
	err  error
}

// Target specs repeat heavily across a dependency graph (cfg(windows),
// cfg(unix), ...), so parses are memoized.
var cfgCache, _ = lru.New[string, parsedCfg](512)

func parseCfgCached(spec string) (*cfgExpr, error) {
	if hit, ok := cfgCache.Get(spec); ok {
		return hit.expr, hit.err
	}
	expr, err := parseCfg(spec)
	cfgCache.Add(spec, parsedCfg{expr: expr, err: err})
	return expr, err
}

// parseCfg parses "cfg(<predicate>)".
func parseCfg(spec string) (*cfgExpr, error) {
	p := &cfgParser{toks: tokenizeCfg(spec)}
	if !p.accept("cfg") || !p.accept("(") {
		return nil, fmt.Errorf("cfg spec %q: expected cfg(", spec)
	}
	expr, err := p.predicate()
	if err != nil {
		return nil, fmt.Errorf("cfg spec %q: %w", spec, err)
	}
	if !p.accept(")") || p.pos != len(p.toks) {
		return nil, fmt.Errorf("cfg spec %q: trailing input", spec)
	}
	return expr, nil
}

type cfgParser struct {
	toks []string
	pos  int
}

func (p *cfgParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *cfgParser) accept(tok string) bool {
	if p.peek() == tok {
		p.pos++
		return true
	}
	return false
}

func (p *cfgParser) predicate() (*cfgExpr, error) {
	ident := p.peek()
	if ident == "" || !isIdent(ident) {
		return nil, fmt.Errorf("expected identifier, got %q", ident)
	}
	p.pos++

	switch {
	case p.accept("("):
		if ident != "all" && ident != "any" && ident != "not" {
			return nil, fmt.Errorf("unknown operator %q", ident)
		}
		e := &cfgExpr{op: ident}
		for !p.accept(")") {
			if p.peek() == "" {
				return nil, fmt.Errorf("unterminated %s(", ident)
			}
			arg, err := p.predicate()
			if err != nil {
				return nil, err
			}
			e.args = append(e.args, arg)
			if !p.accept(",") && p.peek() != ")" {
				return nil, fmt.Errorf("expected , or ) in %s(", ident)
			}
		}
		if ident == "not" && len(e.args) != 1 {
			return nil, fmt.Errorf("not() takes exactly one predicate")
		}
		return e, nil
	case p.accept("="):
		lit := p.peek()
		if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
			return nil, fmt.Errorf("expected string after %s =", ident)
		}
		p.pos++
		return &cfgExpr{key: ident, value: strings.Trim(lit, `"`), isKV: true}, nil
	}
	return &cfgExpr{key: ident}, nil
}

func isIdent(tok string) bool {
	r := rune(tok[0])
	return r == '_' || unicode.IsLetter(r)
}

// tokenizeCfg splits a spec into identifiers, quoted strings and the
// punctuation ( ) , =. Unknown characters become single-rune tokens so the
// parser rejects them.
func tokenizeCfg(s string) []string {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '"':
			j := strings.IndexByte(s[i+1:], '"')
			if j < 0 {
				return append(toks, s[i:])
			}
			toks = append(toks, s[i:i+j+2])
			i += j + 2
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			j := i
			for j < len(s) && (s[j] == '_' || s[j] >= 'a' && s[j] <= 'z' || s[j] >= 'A' && s[j] <= 'Z' || s[j] >= '0' && s[j] <= '9') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			toks = append(toks, s[i:i+1])
			i++
		}
	}
	return toks
}
