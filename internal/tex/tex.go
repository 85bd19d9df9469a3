// Package tex parses TeX math expressions into structural subpaths.
//
// A subpath is the operator path from one leaf (a variable or number) up
// to the expression root, e.g. "var(x)/sup" for the x in x^2. The math
// index stores these per (document, position) so that structurally
// similar expressions can be matched at query time.
package tex

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Subpaths is the set of leaf-to-root paths of one parsed expression.
// It aliases []string so Parser satisfies collaborator interfaces that
// speak plain string slices.
type Subpaths = []string

// Parser parses TeX sources into subpaths. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a TeX math expression and returns its subpaths.
// The returned set is deduplicated and sorted. An error means the
// expression could not be understood; callers degrade to offset-only
// bookkeeping in that case.
func (p *Parser) Parse(src string) (Subpaths, error) {
	toks, err := scanTokens(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}

	pr := &parse{toks: toks}
	root, err := pr.expr()
	if err != nil {
		return nil, err
	}
	if pr.pos != len(pr.toks) {
		return nil, fmt.Errorf("unexpected %q at token %d", pr.toks[pr.pos].text, pr.pos)
	}

	set := map[string]struct{}{}
	collectPaths(root, nil, set)

	paths := make(Subpaths, 0, len(set))
	for s := range set {
		paths = append(paths, s)
	}
	sort.Strings(paths)
	return paths, nil
}

// node is one operator or leaf in the parsed expression tree.
type node struct {
	op       string
	children []*node
}

// collectPaths walks the tree accumulating the leaf-to-root path per leaf.
func collectPaths(n *node, trail []string, set map[string]struct{}) {
	if len(n.children) == 0 {
		parts := make([]string, 0, len(trail)+1)
		parts = append(parts, n.op)
		for i := len(trail) - 1; i >= 0; i-- {
			parts = append(parts, trail[i])
		}
		set[strings.Join(parts, "/")] = struct{}{}
		return
	}
	trail = append(trail, n.op)
	for _, c := range n.children {
		collectPaths(c, trail, set)
	}
}

type tokKind int

const (
	tokVar tokKind = iota
	tokNum
	tokOp   // + - * / ^ _
	tokOpen // ( or {
	tokClose
)

type token struct {
	kind tokKind
	text string
}

// greek commands and function names are indexed as named leaves.
var namedSymbols = map[string]bool{
	"alpha": true, "beta": true, "gamma": true, "delta": true,
	"epsilon": true, "zeta": true, "eta": true, "theta": true,
	"iota": true, "kappa": true, "lambda": true, "mu": true,
	"nu": true, "xi": true, "pi": true, "rho": true,
	"sigma": true, "tau": true, "phi": true, "chi": true,
	"psi": true, "omega": true, "infty": true,
	"sin": true, "cos": true, "tan": true, "log": true,
	"ln": true, "exp": true,
}

// scanTokens splits TeX source into tokens. \frac and \sqrt are rewritten
// into operator tokens; \left, \right and spacing commands are dropped.
func scanTokens(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsLetter(r):
			// TeX treats adjacent letters as separate variables (xy = x*y).
			toks = append(toks, token{tokVar, string(r)})
			i++
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNum, string(rs[i:j])})
			i = j
		case r == '\\':
			j := i + 1
			for j < len(rs) && unicode.IsLetter(rs[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("dangling backslash at byte %d", i)
			}
			name := string(rs[i+1 : j])
			i = j
			switch {
			case name == "frac":
				toks = append(toks, token{tokOp, `\frac`})
			case name == "sqrt":
				toks = append(toks, token{tokOp, `\sqrt`})
			case name == "cdot" || name == "times":
				toks = append(toks, token{tokOp, "*"})
			case name == "left" || name == "right" || name == "quad" || name == "qquad":
				// grouping hints only
			case namedSymbols[name]:
				toks = append(toks, token{tokVar, name})
			default:
				return nil, fmt.Errorf("unsupported command \\%s", name)
			}
		case strings.ContainsRune("+-*/^_=<>", r):
			toks = append(toks, token{tokOp, string(r)})
			i++
		case r == '(' || r == '{' || r == '[':
			toks = append(toks, token{tokOpen, string(r)})
			i++
		case r == ')' || r == '}' || r == ']':
			toks = append(toks, token{tokClose, string(r)})
			i++
		case r == ',':
			// argument separators carry no structure
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	return toks, nil
}

// parse is a recursive-descent parser over the token stream.
//
// Grammar, loosest binding first:
//
//	expr   := rel (('='|'<'|'>') rel)*
//	rel    := term (('+'|'-') term)*
//	term   := factor (('*'|'/')? factor)*      -- juxtaposition multiplies
//	factor := base (('^'|'_') base)*
//	base   := VAR | NUM | '-' base | group | \frac group group | \sqrt group
type parse struct {
	toks []token
	pos  int
}

func (p *parse) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parse) accept(kind tokKind, text string) bool {
	if t, ok := p.peek(); ok && t.kind == kind && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parse) expr() (*node, error) {
	left, err := p.rel()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "=" && t.text != "<" && t.text != ">") {
			return left, nil
		}
		p.pos++
		right, err := p.rel()
		if err != nil {
			return nil, err
		}
		left = &node{op: relName(t.text), children: []*node{left, right}}
	}
}

func relName(op string) string {
	switch op {
	case "<":
		return "lt"
	case ">":
		return "gt"
	default:
		return "eq"
	}
}

func (p *parse) rel() (*node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	children := []*node{left}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "+" && t.text != "-") {
			break
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			right = &node{op: "neg", children: []*node{right}}
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &node{op: "add", children: children}, nil
}

func (p *parse) term() (*node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	children := []*node{left}
	for {
		t, ok := p.peek()
		if !ok {
			break
		}
		if t.kind == tokOp && t.text == "/" {
			p.pos++
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			prev := children[len(children)-1]
			children[len(children)-1] = &node{op: "frac", children: []*node{prev, right}}
			continue
		}
		if t.kind == tokOp && t.text == "*" {
			p.pos++
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			children = append(children, right)
			continue
		}
		// implicit multiplication by juxtaposition
		if t.kind == tokVar || t.kind == tokNum || t.kind == tokOpen ||
			(t.kind == tokOp && (t.text == `\frac` || t.text == `\sqrt`)) {
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			children = append(children, right)
			continue
		}
		break
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &node{op: "times", children: children}, nil
}

func (p *parse) factor() (*node, error) {
	base, err := p.base()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept(tokOp, "^"):
			arg, err := p.base()
			if err != nil {
				return nil, err
			}
			base = &node{op: "sup", children: []*node{base, arg}}
		case p.accept(tokOp, "_"):
			arg, err := p.base()
			if err != nil {
				return nil, err
			}
			base = &node{op: "sub", children: []*node{base, arg}}
		default:
			return base, nil
		}
	}
}

func (p *parse) base() (*node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch {
	case t.kind == tokVar:
		p.pos++
		return &node{op: "var(" + t.text + ")"}, nil
	case t.kind == tokNum:
		p.pos++
		return &node{op: "num(" + t.text + ")"}, nil
	case t.kind == tokOp && t.text == "-":
		p.pos++
		inner, err := p.base()
		if err != nil {
			return nil, err
		}
		return &node{op: "neg", children: []*node{inner}}, nil
	case t.kind == tokOpen:
		return p.group()
	case t.kind == tokOp && t.text == `\frac`:
		p.pos++
		num, err := p.group()
		if err != nil {
			return nil, err
		}
		den, err := p.group()
		if err != nil {
			return nil, err
		}
		return &node{op: "frac", children: []*node{num, den}}, nil
	case t.kind == tokOp && t.text == `\sqrt`:
		p.pos++
		inner, err := p.group()
		if err != nil {
			return nil, err
		}
		return &node{op: "root", children: []*node{inner}}, nil
	default:
		return nil, fmt.Errorf("unexpected %q", t.text)
	}
}

// group parses a parenthesized or braced subexpression.
func (p *parse) group() (*node, error) {
	t, ok := p.peek()
	if !ok || t.kind != tokOpen {
		return nil, fmt.Errorf("expected group")
	}
	p.pos++
	inner, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t2, ok := p.peek(); !ok || t2.kind != tokClose {
		return nil, fmt.Errorf("unbalanced %q", t.text)
	}
	p.pos++
	return inner, nil
}
