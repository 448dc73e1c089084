package signature

import (
	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/types"
)

// Parse parses the signature string grammar:
//
//	[name] return_type(arg_type, arg_type, ...)
//
// e.g. "myfun f8(f8, i4)". The leading name is optional and becomes the
// exported symbol name. Type expressions are a primitive name, "*expr" for
// pointers, or "expr[:]" for arrays; an identifier that is not a known
// primitive is a free template type variable.
func Parse(input string) (*Signature, error) {
	s := &scanner{input: input}

	s.ws()
	name := ""
	if isIdentStart(s.peek()) {
		ident := s.ident()
		s.ws()
		if next := s.peek(); next == '(' || next == '[' {
			// Single token continued by '(' or an array suffix: it is the
			// return type.
			s.pushBack(ident)
		} else {
			// Two leading tokens: the first was the signature name.
			name = ident
		}
	}

	ret, err := s.typeExpr()
	if err != nil {
		return nil, err
	}

	s.ws()
	if s.peek() != '(' {
		return nil, errors.Syntax(input, s.pos, "expected '('")
	}
	s.pos++

	var args []types.Type
	s.ws()
	if s.peek() != ')' {
		for {
			arg, err := s.typeExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			s.ws()
			if s.peek() == ')' {
				break
			}
			if s.peek() != ',' {
				return nil, errors.Syntax(input, s.pos, "expected ',' or ')'")
			}
			s.pos++
		}
	}
	s.pos++ // consume ')'

	s.ws()
	if s.pos < len(s.input) {
		return nil, errors.Syntax(input, s.pos, "trailing characters after signature")
	}

	return New(name, ret, args...), nil
}

type scanner struct {
	input   string
	pending string
	pos     int
}

func (s *scanner) peek() rune {
	if s.pending != "" {
		return rune(s.pending[0])
	}
	if s.pos >= len(s.input) {
		return 0
	}
	return rune(s.input[s.pos])
}

func (s *scanner) ws() {
	for s.pending == "" && s.pos < len(s.input) && (s.input[s.pos] == ' ' || s.input[s.pos] == '\t') {
		s.pos++
	}
}

func (s *scanner) ident() string {
	if s.pending != "" {
		ident := s.pending
		s.pending = ""
		return ident
	}
	start := s.pos
	for s.pos < len(s.input) && isIdentPart(rune(s.input[s.pos])) {
		s.pos++
	}
	return s.input[start:s.pos]
}

// pushBack makes ident the next token again after lookahead
func (s *scanner) pushBack(ident string) {
	s.pending = ident
}

// typeExpr parses "*"* ident "[:]"*. Pointers wrap the fully suffixed base,
// so "*f8[:]" is a pointer to an array of f8.
func (s *scanner) typeExpr() (types.Type, error) {
	s.ws()

	pointers := 0
	for s.peek() == '*' {
		pointers++
		s.pos++
		s.ws()
	}

	if !isIdentStart(s.peek()) {
		return nil, errors.Syntax(s.input, s.pos, "expected type name")
	}
	ident := s.ident()

	base, ok := types.ByName(ident)
	if !ok {
		base = types.Var{Name: ident}
	}

	for s.pending == "" && s.pos+2 <= len(s.input) && s.input[s.pos:s.pos+2] == "[:" {
		if s.pos+3 > len(s.input) || s.input[s.pos+2] != ']' {
			return nil, errors.Syntax(s.input, s.pos, "malformed array suffix")
		}
		s.pos += 3
		base = types.Array{Elem: base}
	}

	for i := 0; i < pointers; i++ {
		base = types.Pointer{Elem: base}
	}
	return base, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
