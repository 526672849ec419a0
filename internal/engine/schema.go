package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const appSchemaURL = "https://pagebind.schemas.local/app.schema.json"

// appSchema — JSON Schema DSL приложения.
// Проверяет форму документа; смысловые проверки делает Validate.
const appSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["items"],
  "properties": {
    "id": {"type": "string"},
    "type": {"type": "string"},
    "name": {"type": "string"},
    "items": {"type": "array", "items": {"$ref": "#/$defs/node"}},
    "dataSources": {"type": "array", "items": {"$ref": "#/$defs/dataSource"}},
    "dataSourceDeps": {"$ref": "#/$defs/depTable"},
    "dataSourceCondDeps": {"$ref": "#/$defs/depTable"}
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "name": {"type": "string"},
        "props": {"type": "object"},
        "condition": {"type": "string"},
        "condResult": {"type": "boolean"},
        "displayConds": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "cond": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["field", "op"],
                  "properties": {
                    "field": {"type": "array", "items": {"type": "string"}},
                    "op": {"type": "string"},
                    "range": {"type": "array", "items": {"type": "number"}}
                  }
                }
              }
            }
          }
        },
        "items": {"type": "array", "items": {"$ref": "#/$defs/node"}}
      }
    },
    "field": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string"},
        "type": {"enum": ["string", "number", "boolean", "object", "array", "any"]},
        "fields": {"type": "array", "items": {"$ref": "#/$defs/field"}}
      }
    },
    "dataSource": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": {"type": "string"},
        "type": {"type": "string"},
        "title": {"type": "string"},
        "fields": {"type": "array", "items": {"$ref": "#/$defs/field"}},
        "options": {
          "type": "object",
          "required": ["url"],
          "properties": {
            "url": {"type": "string"},
            "method": {"type": "string"},
            "params": {"type": "object"},
            "headers": {"type": "object", "additionalProperties": {"type": "string"}}
          }
        },
        "autoFetch": {"type": "boolean"},
        "refresh": {"type": "string"},
        "dataPath": {"type": "string"}
      }
    },
    "depTable": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {
          "type": "object",
          "properties": {
            "name": {"type": "string"},
            "keys": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// loadSchema компилирует схему один раз.
func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(appSchemaURL, strings.NewReader(appSchema)); err != nil {
			schemaErr = fmt.Errorf("app schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(appSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("app schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateSchema проверяет декодированный документ по JSON Schema.
// doc — результат json.Unmarshal / yaml.Unmarshal в any.
func ValidateSchema(doc any) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}
