package llmjson

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/geo-audit/internal/model"
)

// SchemaError reports the first violation found when validating a value.
type SchemaError struct {
	Field       string
	Description string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return e.Description
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// compiledSchema is a reflected schema document plus its validator. Both are
// built once and read-only afterwards.
type compiledSchema struct {
	once   sync.Once
	sample any
	doc    map[string]any
	schema *gojsonschema.Schema
	err    error
}

func (c *compiledSchema) load() (map[string]any, *gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.doc, c.err = reflectSchema(c.sample)
		if c.err != nil {
			return
		}
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(c.doc))
		if c.err != nil {
			c.err = eris.Wrap(c.err, "llmjson: compile schema")
		}
	})
	return c.doc, c.schema, c.err
}

var (
	answerBlockSchema = &compiledSchema{sample: model.AnswerBlock{}}
	envelopeSchema    = &compiledSchema{sample: model.NaturalExtractionEnvelope{}}
)

func reflectSchema(sample any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	raw, err := json.Marshal(reflector.Reflect(sample))
	if err != nil {
		return nil, eris.Wrap(err, "llmjson: marshal schema")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "llmjson: unmarshal schema")
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	return doc, nil
}

// AnswerBlockSchema returns the JSON Schema document for model.AnswerBlock,
// suitable for provider structured-output parameters. Callers must not
// modify it.
func AnswerBlockSchema() map[string]any {
	doc, _, _ := answerBlockSchema.load()
	return doc
}

// EnvelopeSchema returns the JSON Schema document for
// model.NaturalExtractionEnvelope. Callers must not modify it.
func EnvelopeSchema() map[string]any {
	doc, _, _ := envelopeSchema.load()
	return doc
}

// ValidateAnswerBlock validates a decoded JSON value against the answer block
// schema. It returns a *SchemaError for the first violation.
func ValidateAnswerBlock(v any) error {
	return validate(answerBlockSchema, v)
}

// ValidateEnvelope validates a decoded JSON value against the natural
// extraction envelope schema.
func ValidateEnvelope(v any) error {
	return validate(envelopeSchema, v)
}

func validate(c *compiledSchema, v any) error {
	_, schema, err := c.load()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return eris.Wrap(err, "llmjson: validate")
	}
	if result.Valid() {
		return nil
	}
	errs := result.Errors()
	if len(errs) == 0 {
		return &SchemaError{Description: "value does not match schema"}
	}
	return &SchemaError{Field: errs[0].Field(), Description: errs[0].Description()}
}
