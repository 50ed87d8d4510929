package solver

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/homeworkai/backend/internal/domain"
)

// solutionSchema is the structured-output contract of the solve
// capability. A response failing it is rejected whole, never partially
// accepted.
var solutionSchema = map[string]any{
	"type":     "object",
	"required": []any{"document_id", "questions"},
	"properties": map[string]any{
		"document_id": map[string]any{"type": "string"},
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"qid", "question_text", "parts"},
				"properties": map[string]any{
					"qid":           map[string]any{"type": "string"},
					"question_text": map[string]any{"type": "string"},
					"parts": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"label", "answer", "workings"},
							"properties": map[string]any{
								"label":    map[string]any{"type": "string"},
								"answer":   map[string]any{"type": "string"},
								"workings": map[string]any{"type": "string"},
							},
						},
					},
				},
			},
		},
	},
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	b, err := json.Marshal(solutionSchema)
	if err != nil {
		panic(fmt.Sprintf("solver: marshal schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("solution.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("solver: add schema resource: %v", err))
	}
	schema, err := compiler.Compile("solution.json")
	if err != nil {
		panic(fmt.Sprintf("solver: compile schema: %v", err))
	}
	return schema
}

// ValidateSolution checks raw solver output against the solution schema
// and decodes it. Any mismatch is reported as domain.ErrInvalidOutput.
func ValidateSolution(raw []byte) (domain.Solution, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.Solution{}, fmt.Errorf("%w: not json: %v", domain.ErrInvalidOutput, err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return domain.Solution{}, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}

	var sol domain.Solution
	if err := json.Unmarshal(raw, &sol); err != nil {
		return domain.Solution{}, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}
	return sol, nil
}
