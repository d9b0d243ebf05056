package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Selector is a compiled message selector: a boolean expression over
// header fields and properties using SQL-92 conditional syntax.
//
//	color = 'red' AND weight BETWEEN 10 AND 20
//	JMSPriority > 4 OR region IN ('eu', 'us')
//	name LIKE 'ord\_%' ESCAPE '\'
//
// A nil *Selector matches every message.
type Selector struct {
	expr string
	root node
}

// ParseSelector compiles expr. An empty or blank expression yields a nil
// selector that matches everything.
func ParseSelector(expr string) (*Selector, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	toks, err := lex(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, expr, err)
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err == nil && p.peek().kind != tokEOF {
		err = fmt.Errorf("unexpected %q", p.peek().text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, expr, err)
	}
	return &Selector{expr: expr, root: root}, nil
}

// Matches reports whether msg satisfies the selector. Unknown (null)
// results do not match.
func (s *Selector) Matches(msg Message) bool {
	if s == nil {
		return true
	}
	b, ok := s.root.eval(msg).(bool)
	return ok && b
}

func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.expr
}

// Lexer.

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokKeyword
	tokString
	tokInt
	tokFloat
	tokOp
)

type token struct {
	kind tokKind
	text string
}

var keywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "BETWEEN": true, "IN": true,
	"LIKE": true, "ESCAPE": true, "IS": true, "NULL": true, "TRUE": true, "FALSE": true,
}

func lex(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'':
			var sb strings.Builder
			i++
			for {
				if i >= len(rs) {
					return nil, fmt.Errorf("unterminated string literal")
				}
				if rs[i] == '\'' {
					if i+1 < len(rs) && rs[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteRune(rs[i])
				i++
			}
			toks = append(toks, token{tokString, sb.String()})
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			float := false
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				if rs[i] == '.' {
					float = true
				}
				i++
			}
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				float = true
				i++
				if i < len(rs) && (rs[i] == '+' || rs[i] == '-') {
					i++
				}
				for i < len(rs) && unicode.IsDigit(rs[i]) {
					i++
				}
			}
			kind := tokInt
			if float {
				kind = tokFloat
			}
			toks = append(toks, token{kind, string(rs[start:i])})
		case unicode.IsLetter(r) || r == '_' || r == '$':
			start := i
			for i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]) || rs[i] == '_' || rs[i] == '$') {
				i++
			}
			word := string(rs[start:i])
			if keywords[strings.ToUpper(word)] {
				toks = append(toks, token{tokKeyword, strings.ToUpper(word)})
			} else {
				toks = append(toks, token{tokIdent, word})
			}
		default:
			op := string(r)
			if i+1 < len(rs) {
				switch two := string(rs[i : i+2]); two {
				case "<>", "<=", ">=":
					op = two
				}
			}
			if !strings.Contains("=<>+-*/(),", string(r)) {
				return nil, fmt.Errorf("unexpected character %q", r)
			}
			toks = append(toks, token{tokOp, op})
			i += len(op)
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

// Parser.

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokKind, text string) bool {
	if t := p.peek(); t.kind == kind && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokKind, text string) error {
	if !p.accept(kind, text) {
		return fmt.Errorf("expected %q, got %q", text, p.peek().text)
	}
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokKeyword, "OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.accept(tokKeyword, "AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.accept(tokKeyword, "NOT") {
		n, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{n}, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "=", "<>", "<", "<=", ">", ">=":
			p.next()
			right, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			return compareNode{t.text, left, right}, nil
		}
	}
	if p.accept(tokKeyword, "IS") {
		negate := p.accept(tokKeyword, "NOT")
		if err := p.expect(tokKeyword, "NULL"); err != nil {
			return nil, err
		}
		return isNullNode{left, negate}, nil
	}
	negate := p.accept(tokKeyword, "NOT")
	switch {
	case p.accept(tokKeyword, "BETWEEN"):
		lo, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokKeyword, "AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return negated(betweenNode{left, lo, hi}, negate), nil
	case p.accept(tokKeyword, "IN"):
		if err := p.expect(tokOp, "("); err != nil {
			return nil, err
		}
		var set []string
		for {
			s := p.next()
			if s.kind != tokString {
				return nil, fmt.Errorf("IN expects string literals, got %q", s.text)
			}
			set = append(set, s.text)
			if !p.accept(tokOp, ",") {
				break
			}
		}
		if err := p.expect(tokOp, ")"); err != nil {
			return nil, err
		}
		return negated(inNode{left, set}, negate), nil
	case p.accept(tokKeyword, "LIKE"):
		pat := p.next()
		if pat.kind != tokString {
			return nil, fmt.Errorf("LIKE expects a string pattern, got %q", pat.text)
		}
		escape := ""
		if p.accept(tokKeyword, "ESCAPE") {
			e := p.next()
			if e.kind != tokString || len([]rune(e.text)) != 1 {
				return nil, fmt.Errorf("ESCAPE expects a single character")
			}
			escape = e.text
		}
		re, err := likePattern(pat.text, escape)
		if err != nil {
			return nil, err
		}
		return negated(likeNode{left, re}, negate), nil
	}
	if negate {
		return nil, fmt.Errorf("expected BETWEEN, IN or LIKE after NOT")
	}
	return left, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = arithNode{t.text, left, right}
	}
}

func (p *parser) parseProduct() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = arithNode{t.text, left, right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.accept(tokOp, "-") {
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return arithNode{"-", literal{int64(0)}, n}, nil
	}
	if p.accept(tokOp, "+") {
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{t.text}, nil
	case tokInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, err
		}
		return literal{n}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, err
		}
		return literal{f}, nil
	case tokIdent:
		return ident(t.text), nil
	case tokKeyword:
		switch t.text {
		case "TRUE":
			return literal{true}, nil
		case "FALSE":
			return literal{false}, nil
		case "NULL":
			return literal{nil}, nil
		}
	case tokOp:
		if t.text == "(" {
			n, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokOp, ")"); err != nil {
				return nil, err
			}
			return n, nil
		}
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}

func likePattern(pat, escape string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	rs := []rune(pat)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case escape != "" && string(r) == escape:
			if i+1 >= len(rs) {
				return nil, fmt.Errorf("dangling escape in LIKE pattern")
			}
			i++
			sb.WriteString(regexp.QuoteMeta(string(rs[i])))
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// Evaluation. Values are nil (unknown), bool, int64, float64 or string.

type node interface {
	eval(msg Message) any
}

type literal struct{ v any }

func (l literal) eval(Message) any { return l.v }

type ident string

func (id ident) eval(msg Message) any {
	h := msg.msgHeader()
	switch string(id) {
	case "JMSDeliveryMode":
		return h.deliveryMode.String()
	case "JMSPriority":
		return int64(h.priority)
	case "JMSMessageID":
		return nullable(h.id)
	case "JMSCorrelationID":
		return nullable(h.correlationID)
	case "JMSType":
		return nullable(h.typ)
	case "JMSTimestamp":
		if h.timestamp.IsZero() {
			return nil
		}
		return h.timestamp.UnixMilli()
	}
	v, ok := h.props.get(string(id))
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int8, int16, int32, int, int64:
		i, _ := toInt64(n, true)
		return i
	case float32:
		return float64(n)
	}
	return v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type orNode struct{ l, r node }

func (n orNode) eval(msg Message) any {
	l, r := n.l.eval(msg), n.r.eval(msg)
	if l == true || r == true {
		return true
	}
	if l == false && r == false {
		return false
	}
	return nil
}

type andNode struct{ l, r node }

func (n andNode) eval(msg Message) any {
	l, r := n.l.eval(msg), n.r.eval(msg)
	if l == false || r == false {
		return false
	}
	if l == true && r == true {
		return true
	}
	return nil
}

type notNode struct{ n node }

func (n notNode) eval(msg Message) any {
	if b, ok := n.n.eval(msg).(bool); ok {
		return !b
	}
	return nil
}

func negated(n node, negate bool) node {
	if negate {
		return notNode{n}
	}
	return n
}

type compareNode struct {
	op   string
	l, r node
}

func (n compareNode) eval(msg Message) any {
	l, r := n.l.eval(msg), n.r.eval(msg)
	if l == nil || r == nil {
		return nil
	}
	if lf, rf, ok := numbers(l, r); ok {
		switch n.op {
		case "=":
			return lf == rf
		case "<>":
			return lf != rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}
	var eq bool
	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return nil
		}
		eq = lv == rv
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return nil
		}
		eq = lv == rv
	default:
		return nil
	}
	switch n.op {
	case "=":
		return eq
	case "<>":
		return !eq
	}
	return nil
}

// numbers widens a pair of numeric values to float64.
func numbers(l, r any) (float64, float64, bool) {
	lf, lok := number(l)
	rf, rok := number(r)
	return lf, rf, lok && rok
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

type arithNode struct {
	op   string
	l, r node
}

func (n arithNode) eval(msg Message) any {
	l, r := n.l.eval(msg), n.r.eval(msg)
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		switch n.op {
		case "+":
			return li + ri
		case "-":
			return li - ri
		case "*":
			return li * ri
		case "/":
			if ri == 0 {
				return nil
			}
			return li / ri
		}
	}
	lf, rf, ok := numbers(l, r)
	if !ok {
		return nil
	}
	switch n.op {
	case "+":
		return lf + rf
	case "-":
		return lf - rf
	case "*":
		return lf * rf
	case "/":
		if rf == 0 {
			return nil
		}
		return lf / rf
	}
	return nil
}

type betweenNode struct{ v, lo, hi node }

func (n betweenNode) eval(msg Message) any {
	v, okV := number(n.v.eval(msg))
	lo, okLo := number(n.lo.eval(msg))
	hi, okHi := number(n.hi.eval(msg))
	if !okV || !okLo || !okHi {
		return nil
	}
	return lo <= v && v <= hi
}

type inNode struct {
	v   node
	set []string
}

func (n inNode) eval(msg Message) any {
	s, ok := n.v.eval(msg).(string)
	if !ok {
		return nil
	}
	for _, item := range n.set {
		if item == s {
			return true
		}
	}
	return false
}

type likeNode struct {
	v  node
	re *regexp.Regexp
}

func (n likeNode) eval(msg Message) any {
	s, ok := n.v.eval(msg).(string)
	if !ok {
		return nil
	}
	return n.re.MatchString(s)
}

type isNullNode struct {
	v      node
	negate bool
}

func (n isNullNode) eval(msg Message) any {
	isNull := n.v.eval(msg) == nil
	return isNull != n.negate
}
