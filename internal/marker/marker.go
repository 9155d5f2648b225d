// Package marker evaluates environment-marker boolean expressions: a
// marker is a boolean expression over leaf comparisons against named
// interpreter facts. The boolean layer tokenizes into and/or/parens/
// opaque leaf phrases and evaluates left-to-right with and/or at the
// same precedence. The leaf grammar (env-var vs. quoted string,
// comparison operator set) covers nine named facts plus the
// ^/~/in/not-in operators, beyond a plain PEP 508 marker's operator set.
package marker

import (
	"fmt"
	"strings"

	"github.com/flexatone/fetter/internal/ferrors"
	"github.com/flexatone/fetter/internal/version"
)

// Facts is the per-interpreter marker state: nine named facts captured
// by invoking the interpreter with a fixed facts-printing script.
type Facts struct {
	OSName                  string
	Platform                string
	Machine                 string
	ImplementationName      string
	ImplementationRelease   string
	System                  string
	ShortVersion            string
	FullVersion             string
	ShortImplementationName string
}

// factNames maps the PEP 508-style variable names usable inside a marker
// expression to the Facts field they read. Facts ending in "release" or
// "version" compare as Versions; the rest compare as strings.
var factNames = map[string]func(Facts) string{
	"os_name":                        func(f Facts) string { return f.OSName },
	"sys_platform":                   func(f Facts) string { return f.Platform },
	"platform_machine":               func(f Facts) string { return f.Machine },
	"implementation_name":            func(f Facts) string { return f.ImplementationName },
	"platform_release":               func(f Facts) string { return f.ImplementationRelease },
	"platform_system":                func(f Facts) string { return f.System },
	"python_version":                 func(f Facts) string { return f.ShortVersion },
	"python_full_version":            func(f Facts) string { return f.FullVersion },
	"platform_python_implementation": func(f Facts) string { return f.ShortImplementationName },
}

func isVersionFact(name string) bool {
	return strings.HasSuffix(name, "release") || strings.HasSuffix(name, "version")
}

// Evaluate parses and evaluates a marker string (without the leading
// ";") against facts, returning a typed error for an unknown fact name,
// an unsupported operator, or a dangling boolean token.
func Evaluate(markerStr string, facts Facts) (bool, error) {
	markerStr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(markerStr), ";"))
	if markerStr == "" {
		return true, nil
	}

	tokens := tokenize(markerStr)
	lookup := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if tok.kind != tokPhrase {
			continue
		}
		if _, ok := lookup[tok.text]; ok {
			continue
		}
		v, err := evalLeaf(tok.text, facts)
		if err != nil {
			return false, err
		}
		lookup[tok.text] = v
	}

	idx := 0
	result, err := evalBool(tokens, &idx, lookup)
	if err != nil {
		return false, err
	}
	return result, nil
}

//------------------------------------------------------------------------------
// Boolean layer: tokenizer and left-to-right evaluator.

type tokenKind uint8

const (
	tokAnd tokenKind = iota
	tokOr
	tokParenOpen
	tokParenClose
	tokPhrase
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits expr into and/or/paren/phrase tokens. "and" and "or"
// are only recognized as whole words surrounded by spaces, so that
// occurrences inside quoted values (e.g. "issue or bug" as a literal)
// are preserved as part of the enclosing phrase.
func tokenize(expr string) []token {
	var tokens []token
	var word strings.Builder
	var quote rune

	flush := func() {
		if text := strings.TrimSpace(word.String()); text != "" {
			tokens = append(tokens, token{kind: tokPhrase, text: text})
		}
		word.Reset()
	}

	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch ch {
		case '(':
			flush()
			tokens = append(tokens, token{kind: tokParenOpen})
			i++
		case ')':
			flush()
			tokens = append(tokens, token{kind: tokParenClose})
			i++
		case ' ':
			// Always keep the space, even at the start of a word -
			// otherwise "and"/"or" right after a ")" (with nothing
			// else preceding it) loses the leading space its suffix
			// check below requires and falls through as plain text.
			word.WriteRune(ch)
			i++
		default:
			consumed := false
			if isWordRune(ch) {
				word.WriteRune(ch)
				i++
				consumed = true
				if ch == '"' || ch == '\'' {
					switch quote {
					case 0:
						quote = ch
					case ch:
						quote = 0
					}
				}
				// a keyword needs a space after it too, and is never
				// recognized inside a quoted value
				keywordEnd := quote == 0 && i < len(runes) && runes[i] == ' '
				if keywordEnd && ch == 'r' && strings.HasSuffix(word.String(), " or") {
					pre := strings.TrimSpace(word.String()[:word.Len()-3])
					if pre != "" {
						tokens = append(tokens, token{kind: tokPhrase, text: pre})
					}
					tokens = append(tokens, token{kind: tokOr})
					word.Reset()
				} else if keywordEnd && ch == 'd' && strings.HasSuffix(word.String(), " and") {
					pre := strings.TrimSpace(word.String()[:word.Len()-4])
					if pre != "" {
						tokens = append(tokens, token{kind: tokPhrase, text: pre})
					}
					tokens = append(tokens, token{kind: tokAnd})
					word.Reset()
				}
			}
			if !consumed {
				i++
			}
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '_' || r == '"' || r == '\'' || r == '.' || r == '<' || r == '>' ||
		r == '=' || r == '!' || r == '~' || r == '^' || r == '-' || r == '+' || r == '*'
}

func evalBool(tokens []token, idx *int, lookup map[string]bool) (bool, error) {
	var result bool
	var haveOperand bool
	var haveOp bool
	var opIsAnd bool
	dangling := &ferrors.ParseError{Context: "marker", Err: fmt.Errorf("dangling boolean operator")}

	for *idx < len(tokens) {
		tok := tokens[*idx]
		var operand bool
		switch tok.kind {
		case tokPhrase:
			v, ok := lookup[tok.text]
			if !ok {
				return false, &ferrors.InternalError{Reason: fmt.Sprintf("unevaluated marker phrase: %q", tok.text)}
			}
			operand = v
			*idx++
		case tokAnd, tokOr:
			if !haveOperand || haveOp {
				return false, dangling
			}
			haveOp, opIsAnd = true, tok.kind == tokAnd
			*idx++
			continue
		case tokParenOpen:
			*idx++
			sub, err := evalBool(tokens, idx, lookup)
			if err != nil {
				return false, err
			}
			if *idx < len(tokens) && tokens[*idx].kind == tokParenClose {
				*idx++
			}
			operand = sub
		case tokParenClose:
			if haveOp {
				return false, dangling
			}
			return result, nil
		}

		if haveOp {
			if opIsAnd {
				result = result && operand
			} else {
				result = result || operand
			}
			haveOp = false
		} else {
			result = operand
		}
		haveOperand = true
	}
	if haveOp {
		return false, dangling
	}
	return result, nil
}

//------------------------------------------------------------------------------
// Leaf layer: "<left> <op> <right>" comparisons.

// operators ordered so that longest-match-first scanning never mistakes
// a prefix of a longer operator (e.g. "==" inside "===") for the whole
// thing.
var operators = []string{"not in", "===", "~=", "==", "!=", "<=", ">=", "in", "^", "~", "<", ">"}

func evalLeaf(phrase string, facts Facts) (bool, error) {
	left, op, right, err := splitLeaf(phrase)
	if err != nil {
		return false, err
	}

	leftVal, leftIsFact, err := resolveOperand(left, facts)
	if err != nil {
		return false, err
	}
	rightVal, rightIsFact, err := resolveOperand(right, facts)
	if err != nil {
		return false, err
	}

	asVersion := (leftIsFact && isVersionFact(left)) || (rightIsFact && isVersionFact(right))

	switch op {
	case "in", "not in":
		contains := strings.Contains(rightVal, leftVal)
		if op == "not in" {
			return !contains, nil
		}
		return contains, nil
	}

	if asVersion {
		lv, rv := version.Parse(leftVal), version.Parse(rightVal)
		switch op {
		case "<":
			return lv.LessThan(rv), nil
		case "<=":
			return lv.LessThan(rv) || lv.Equal(rv), nil
		case "==":
			return lv.Equal(rv), nil
		case "!=":
			return !lv.Equal(rv), nil
		case ">":
			return lv.GreaterThan(rv), nil
		case ">=":
			return lv.GreaterThan(rv) || lv.Equal(rv), nil
		case "~=":
			return lv.IsCompatible(rv) && (lv.LessThan(rv) || lv.Equal(rv)), nil
		case "===":
			return lv.IsArbitraryEqual(rv), nil
		case "^":
			return lv.IsCaret(rv), nil
		case "~":
			return lv.IsTilde(rv), nil
		}
	}

	switch op {
	case "<":
		return leftVal < rightVal, nil
	case "<=":
		return leftVal <= rightVal, nil
	case "==":
		return leftVal == rightVal, nil
	case "!=":
		return leftVal != rightVal, nil
	case ">":
		return leftVal > rightVal, nil
	case ">=":
		return leftVal >= rightVal, nil
	case "===":
		return leftVal == rightVal, nil
	}
	return false, &ferrors.UnsupportedError{Reason: fmt.Sprintf("unsupported marker operator %q", op)}
}

func splitLeaf(phrase string) (left, op, right string, err error) {
	for _, candidate := range operators {
		if i := strings.Index(phrase, " "+candidate+" "); i >= 0 {
			left = strings.TrimSpace(phrase[:i])
			right = strings.TrimSpace(phrase[i+len(candidate)+2:])
			return left, candidate, right, nil
		}
	}
	return "", "", "", &ferrors.ParseError{Context: "marker", Err: fmt.Errorf("no comparison operator found in %q", phrase)}
}

func resolveOperand(token string, facts Facts) (value string, isFact bool, err error) {
	if len(token) >= 2 && (token[0] == '\'' || token[0] == '"') && token[len(token)-1] == token[0] {
		return token[1 : len(token)-1], false, nil
	}
	if getter, ok := factNames[token]; ok {
		return getter(facts), true, nil
	}
	return "", false, &ferrors.ParseError{Context: "marker", Err: fmt.Errorf("unknown fact name %q", token)}
}
