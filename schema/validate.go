package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"
)

// FieldViolation describes a single argument field that failed validation.
type FieldViolation struct {
	// Path is the JSON path of the violating field, "(root)" for
	// document-level violations.
	Path string `json:"path"`
	// Reason is a human-readable description of the violation.
	Reason string `json:"reason"`
}

// ValidationError is returned when a set of arguments does not conform to a
// tool's parameter schema. It carries a machine-readable list of violations.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid arguments")
	for i, v := range e.Violations {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", v.Path, v.Reason)
	}
	return sb.String()
}

// Normalize converts any JSON-Schema-marshalable parameters value into its
// canonical map form. Adapters and validators operate on this form so that
// native (reflected) and remote (wire) schemas are treated uniformly.
func Normalize(params any) (map[string]any, error) {
	if params == nil {
		return map[string]any{"type": "object"}, nil
	}
	if m, ok := params.(map[string]any); ok {
		return m, nil
	}
	bs, err := json.Marshal(params)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to marshal parameters schema")
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, errors.WithMessage(err, "parameters schema is not a JSON object")
	}
	return m, nil
}

// ValidateArguments checks the JSON-encoded arguments against the tool's
// parameter schema. It returns *ValidationError when the arguments violate
// the schema, or another error when the schema itself cannot be used.
func ValidateArguments(params any, args []byte) error {
	normalized, err := Normalize(params)
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(args)) == 0 {
		args = []byte("{}")
	}
	if !json.Valid(args) {
		return &ValidationError{
			Violations: []FieldViolation{{Path: "(root)", Reason: "arguments are not valid JSON"}},
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(normalized),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		return errors.WithMessage(err, "failed to validate arguments")
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.Violations = append(verr.Violations, FieldViolation{
			Path:   re.Field(),
			Reason: re.Description(),
		})
	}
	return verr
}
