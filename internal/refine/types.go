package refine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownOperator      = errors.New("unknown operator")
	ErrUnknownKind          = errors.New("unknown value type")
	ErrInvalidDirection     = errors.New("invalid sort direction")
	ErrInvalidBoolean       = errors.New("invalid search boolean")
	ErrDuplicateParameter   = errors.New("duplicate parameter")
	ErrMultipleDefaultSorts = errors.New("more than one default sort")
	ErrUnresolvable         = errors.New("unresolvable parameter")
	ErrInvalidConfig        = errors.New("invalid refine config")
)

// Kind is the type a raw query value is coerced into.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
	KindTime   Kind = "time"
	KindArray  Kind = "array"
	KindEnum   Kind = "enum"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindString, nil
	case KindString, KindInt, KindFloat, KindBool, KindDate, KindTime, KindArray, KindEnum:
		return k, nil
	case "integer":
		return KindInt, nil
	case "boolean":
		return KindBool, nil
	case "number", "numeric":
		return KindFloat, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Operator is the comparison a Filter applies.
type Operator string

const (
	OpEq       Operator = "="
	OpNotEq    Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpLike     Operator = "LIKE"
	OpNotLike  Operator = "NOT LIKE"
	OpILike    Operator = "ILIKE"
	OpNotILike Operator = "NOT ILIKE"
)

// operatorTokens maps both symbols and short names onto operators.
var operatorTokens = map[string]Operator{
	"=":         OpEq,
	"eq":        OpEq,
	"!=":        OpNotEq,
	"<>":        OpNotEq,
	"neq":       OpNotEq,
	">":         OpGt,
	"gt":        OpGt,
	">=":        OpGte,
	"gte":       OpGte,
	"<":         OpLt,
	"lt":        OpLt,
	"<=":        OpLte,
	"lte":       OpLte,
	"like":      OpLike,
	"cnt":       OpLike,
	"not like":  OpNotLike,
	"nlike":     OpNotLike,
	"ilike":     OpILike,
	"not ilike": OpNotILike,
	"nilike":    OpNotILike,
}

func ParseOperator(s string) (Operator, error) {
	token := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if token == "" {
		return OpEq, nil
	}
	if op, ok := operatorTokens[token]; ok {
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte, OpLike, OpNotLike, OpILike, OpNotILike:
		return true
	}
	return false
}

func (o Operator) isLike() bool {
	switch o {
	case OpLike, OpNotLike, OpILike, OpNotILike:
		return true
	}
	return false
}

func (o Operator) negated() bool {
	return o == OpNotLike || o == OpNotILike
}

// Direction of a Sort. The empty Direction means unset.
type Direction string

const (
	None Direction = ""
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case None, Asc, Desc:
		return d, nil
	}
	return None, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Direction) sql() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Boolean joins a Search clause to the clauses before it.
type Boolean string

const (
	And Boolean = "and"
	Or  Boolean = "or"
)

func ParseBoolean(s string) (Boolean, error) {
	switch b := Boolean(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return Or, nil
	case And, Or:
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBoolean, s)
}
