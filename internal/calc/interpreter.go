package calc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCommand is returned for every rejected command. The wrapped
// message carries the reason; clients only ever see "ERROR".
var ErrInvalidCommand = errors.New("invalid command")

// Op is an arithmetic operator. OpNone means a plain assignment.
type Op byte

const (
	OpNone Op = 0
	OpAdd  Op = '+'
	OpSub  Op = '-'
	OpMul  Op = '*'
	OpDiv  Op = '/'
)

// Operand is either a numeric literal or a variable reference.
type Operand struct {
	Var     byte // 0 for literals
	Literal float64
}

// IsVar reports whether the operand references a variable.
func (o Operand) IsVar() bool { return o.Var != 0 }

// Command is a syntactically valid assignment. Whether it can be applied
// depends on which variables the target session has assigned.
type Command struct {
	Result byte
	Left   Operand
	Op     Op
	Right  Operand
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCommand, fmt.Sprintf(format, args...))
}

// Parse checks the shape of line: `<result> = <operand> [<op> <operand>]`.
// Tokens are separated by spaces; runs of spaces count as one separator.
func Parse(line string) (Command, error) {
	tokens := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' })

	var cmd Command
	switch len(tokens) {
	case 3, 5:
	case 0:
		return cmd, invalid("empty command")
	default:
		if len(tokens) > 5 {
			return cmd, invalid("trailing tokens after %q", tokens[4])
		}
		if len(tokens) < 3 {
			return cmd, invalid("missing operand")
		}
		return cmd, invalid("missing second operand")
	}

	if !isVariable(tokens[0]) {
		return cmd, invalid("result %q is not a variable", tokens[0])
	}
	cmd.Result = tokens[0][0]

	if tokens[1] != "=" {
		return cmd, invalid("expected '=', got %q", tokens[1])
	}

	left, err := parseOperand(tokens[2])
	if err != nil {
		return cmd, err
	}
	cmd.Left = left

	if len(tokens) == 3 {
		return cmd, nil
	}

	op, err := parseOp(tokens[3])
	if err != nil {
		return cmd, err
	}
	cmd.Op = op

	right, err := parseOperand(tokens[4])
	if err != nil {
		return cmd, err
	}
	cmd.Right = right

	return cmd, nil
}

// Apply evaluates the command against v. All operands are resolved before
// anything is written, so a rejected command leaves v untouched.
func (c Command) Apply(v *Variables) error {
	left, err := c.Left.resolve(v)
	if err != nil {
		return err
	}
	if c.Op == OpNone {
		v.Set(c.Result, left)
		return nil
	}

	right, err := c.Right.resolve(v)
	if err != nil {
		return err
	}

	var result float64
	switch c.Op {
	case OpAdd:
		result = left + right
	case OpSub:
		result = left - right
	case OpMul:
		result = left * right
	case OpDiv:
		result = left / right
	default:
		return invalid("unknown operator %q", c.Op)
	}
	v.Set(c.Result, result)
	return nil
}

// Interpret parses line and applies it to v.
func Interpret(v *Variables, line string) error {
	cmd, err := Parse(line)
	if err != nil {
		return err
	}
	return cmd.Apply(v)
}

func (o Operand) resolve(v *Variables) (float64, error) {
	if !o.IsVar() {
		return o.Literal, nil
	}
	value, ok := v.Get(o.Var)
	if !ok {
		return 0, invalid("variable %c is not assigned", o.Var)
	}
	return value, nil
}

func parseOperand(tok string) (Operand, error) {
	if IsNumeric(tok) {
		return Operand{Literal: ParseNumber(tok)}, nil
	}
	if isVariable(tok) {
		return Operand{Var: tok[0]}, nil
	}
	return Operand{}, invalid("operand %q is neither a number nor a variable", tok)
}

func parseOp(tok string) (Op, error) {
	if len(tok) != 1 {
		return OpNone, invalid("operator %q", tok)
	}
	switch op := Op(tok[0]); op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return op, nil
	default:
		return OpNone, invalid("operator %q", tok)
	}
}

func isVariable(tok string) bool {
	if len(tok) != 1 {
		return false
	}
	_, ok := Index(tok[0])
	return ok
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// IsNumeric reports whether tok looks like a number: a leading digit, '-'
// or '.', followed only by digits and dots. Strings such as "1.2.3" or "-"
// pass; ParseNumber decides what they are worth.
func IsNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	if c := tok[0]; !isDigit(c) && c != '-' && c != '.' {
		return false
	}
	for i := 1; i < len(tok); i++ {
		if c := tok[i]; !isDigit(c) && c != '.' {
			return false
		}
	}
	return true
}

// ParseNumber converts a token accepted by IsNumeric the way strtod does:
// it uses the longest prefix that forms a number and yields 0 when there is
// none. Overflow saturates to ±Inf.
func ParseNumber(tok string) float64 {
	end := len(tok)
	if i := strings.IndexByte(tok, '.'); i >= 0 {
		if j := strings.IndexByte(tok[i+1:], '.'); j >= 0 {
			end = i + 1 + j
		}
	}
	prefix := tok[:end]

	digits := strings.TrimPrefix(prefix, "-")
	if strings.Trim(digits, ".") == "" {
		return 0
	}

	value, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return value
		}
		return 0
	}
	return value
}
