package ical

import (
	"fmt"
	"sort"
	"strings"
)

type CustomError struct {
	msg  string
	args map[string]any
}

// Create a new custom error
func NewCustomError(msg string, args map[string]any) *CustomError {
	if args == nil {
		args = make(map[string]any)
	}
	return &CustomError{
		msg:  msg,
		args: args,
	}
}

// Get the error message followed by its arguments in key order
func (e CustomError) Error() string {
	if len(e.args) == 0 {
		return e.msg
	}
	keys := make([]string, 0, len(e.args))
	for key := range e.args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(e.msg)
	sb.WriteString(" |")
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf(" %s: %v", key, e.args[key]))
	}
	return sb.String()
}

// Get the bare message
func (e CustomError) Msg() string {
	return e.msg
}

// Get one of the structured arguments
func (e CustomError) Arg(key string) any {
	return e.args[key]
}

// A required EventRecord or Document field is missing or malformed.
type ValidationError struct {
	CustomError
	Fields []string
}

func NewValidationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{
		CustomError: *NewCustomError(msg, map[string]any{"fields": strings.Join(fields, ",")}),
		Fields:      fields,
	}
}

// A date, time or timezone string supplied by the caller can't be understood.
type MalformedInputError struct {
	CustomError
	Field string
	Value string
	Err   error
}

func NewMalformedInputError(field, value string, err error) *MalformedInputError {
	args := map[string]any{"field": field, "value": value}
	if err != nil {
		args["err"] = err
	}
	return &MalformedInputError{
		CustomError: *NewCustomError("malformed input", args),
		Field:       field,
		Value:       value,
		Err:         err,
	}
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// An internal invariant broke while building a document. This is a defect.
type SerializationError struct {
	CustomError
}

func NewSerializationError(msg string, args map[string]any) *SerializationError {
	return &SerializationError{CustomError: *NewCustomError(msg, args)}
}

// The input is not a recognizable calendar document.
type ParseError struct {
	CustomError
	Line int
}

func NewParseError(msg string, line int) *ParseError {
	return &ParseError{
		CustomError: *NewCustomError(msg, map[string]any{"line": line}),
		Line:        line,
	}
}
