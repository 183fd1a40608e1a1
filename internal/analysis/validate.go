package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"lexisense/internal/models"

	"github.com/google/jsonschema-go/jsonschema"
)

const dateLayout = "2006-01-02"

func analysisSchema() *jsonschema.Schema {
	str := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }
	object := func(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
	}
	return object(map[string]*jsonschema.Schema{
		"summary": str(),
		"parties": {
			Type:  "array",
			Items: object(map[string]*jsonschema.Schema{"name": str(), "role": str()}, "name", "role"),
		},
		"dates": {
			Type: "array",
			Items: object(map[string]*jsonschema.Schema{
				"label": str(),
				"date":  {Type: "string", Pattern: `^\d{4}-\d{2}-\d{2}$`},
			}, "label", "date"),
		},
		"risks": {
			Type: "array",
			Items: object(map[string]*jsonschema.Schema{
				"severity":    {Type: "string", Enum: []any{"low", "medium", "high"}},
				"description": str(),
			}, "severity", "description"),
		},
	}, "summary", "parties", "dates", "risks")
}

var (
	resolveOnce    sync.Once
	resolvedSchema *jsonschema.Resolved
	resolveErr     error
)

func schema() (*jsonschema.Resolved, error) {
	resolveOnce.Do(func() {
		resolvedSchema, resolveErr = analysisSchema().Resolve(&jsonschema.ResolveOptions{})
	})
	return resolvedSchema, resolveErr
}

// Validate parses a raw model answer into a PartialAnalysis. It is pure: the
// same input always yields the same result. Unknown extra keys are ignored.
func Validate(raw string) (models.PartialAnalysis, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return models.PartialAnalysis{}, &SchemaValidationError{Reason: "response is empty"}
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return models.PartialAnalysis{}, &SchemaValidationError{Reason: "response is not valid JSON", Err: err}
	}
	if _, ok := instance.(map[string]any); !ok {
		return models.PartialAnalysis{}, &SchemaValidationError{Reason: "top-level value is not an object"}
	}

	resolved, err := schema()
	if err != nil {
		return models.PartialAnalysis{}, fmt.Errorf("resolve analysis schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		// The validator's message can quote model output, so it stays in Err.
		return models.PartialAnalysis{}, &SchemaValidationError{Reason: "response does not match the analysis schema", Err: err}
	}

	var out models.PartialAnalysis
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return models.PartialAnalysis{}, &SchemaValidationError{Reason: "decode analysis", Err: err}
	}
	for i, d := range out.Dates {
		if _, err := time.Parse(dateLayout, d.Date); err != nil {
			return models.PartialAnalysis{}, &SchemaValidationError{
				Reason: fmt.Sprintf("dates[%d].date is not a calendar date", i),
				Err:    err,
			}
		}
	}
	if out.Parties == nil {
		out.Parties = []models.Party{}
	}
	if out.Dates == nil {
		out.Dates = []models.KeyDate{}
	}
	if out.Risks == nil {
		out.Risks = []models.Risk{}
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json fence some models add even in
// JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
