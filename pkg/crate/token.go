package crate

import "strings"

// TokenKind classifies a feature-table token.
type TokenKind int

const (
	// TokenFeature enables a feature of the same package. "default" is one of these.
	TokenFeature TokenKind = iota
	// TokenDep ("dep:name") activates an optional dependency without enabling a feature.
	TokenDep
	// TokenDepFeature ("name/feature") enables a feature on a dependency.
	TokenDepFeature
	// TokenWeakDepFeature ("name?/feature") enables a feature on a dependency
	// only if that dependency is activated by something else.
	TokenWeakDepFeature
)

const depPrefix = "dep:"

// Token is a parsed feature-table entry.
type Token struct {
	Kind    TokenKind
	Dep     string // dependency edge name, empty for TokenFeature
	Feature string // feature name, empty for TokenDep
}

// ParseToken classifies s. It never fails: anything that is not a dependency
// reference is a plain feature name.
func ParseToken(s string) Token {
	if name, ok := strings.CutPrefix(s, depPrefix); ok {
		return Token{Kind: TokenDep, Dep: name}
	}
	if dep, feature, ok := strings.Cut(s, "/"); ok {
		if weak, isWeak := strings.CutSuffix(dep, "?"); isWeak {
			return Token{Kind: TokenWeakDepFeature, Dep: weak, Feature: feature}
		}
		return Token{Kind: TokenDepFeature, Dep: dep, Feature: feature}
	}
	return Token{Kind: TokenFeature, Feature: s}
}

// String renders the token back into feature-table syntax.
func (t Token) String() string {
	switch t.Kind {
	case TokenDep:
		return depPrefix + t.Dep
	case TokenDepFeature:
		return t.Dep + "/" + t.Feature
	case TokenWeakDepFeature:
		return t.Dep + "?/" + t.Feature
	}
	return t.Feature
}

// IsDirective reports whether the token refers to a dependency rather than
// naming a feature of the same package.
func (t Token) IsDirective() bool { return t.Kind != TokenFeature }
