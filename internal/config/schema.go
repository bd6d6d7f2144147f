package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/qri-io/jsonschema"
)

// schemaJSON guards the shape of the configuration document before
// unmarshaling, so structural mistakes surface with a field path instead of
// a decode error deep inside a run.
const schemaJSON = `{
  "type": "object",
  "required": ["product", "environments"],
  "properties": {
    "product": { "type": "string", "minLength": 1 },
    "history": {
      "type": "object",
      "properties": { "path": { "type": "string" } }
    },
    "environments": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["mode", "domain", "proxy"],
        "properties": {
          "mode": { "enum": ["container", "static-release"] },
          "domain": { "type": "string", "minLength": 1 },
          "proxy": { "$ref": "#/$defs/server" },
          "workload": { "$ref": "#/$defs/server" },
          "container": {
            "type": "object",
            "required": ["registry", "port"],
            "properties": {
              "port": { "type": "integer", "minimum": 1, "maximum": 65535 },
              "registry": {
                "type": "object",
                "required": ["provider", "repository"],
                "properties": {
                  "provider": { "enum": ["basic", "ecr", "gcr", "acr"] },
                  "repository": { "type": "string", "minLength": 1 }
                }
              }
            }
          },
          "static": {
            "type": "object",
            "required": ["deploy_root", "archive"],
            "properties": {
              "deploy_root": { "type": "string", "minLength": 1 },
              "retain": { "type": "integer", "minimum": 1 }
            }
          },
          "tls": {
            "type": "object",
            "required": ["cert_path", "key_path"]
          }
        }
      }
    }
  },
  "$defs": {
    "server": {
      "type": "object",
      "required": ["host", "user"],
      "properties": {
        "host": { "type": "string", "minLength": 1 },
        "user": { "type": "string", "minLength": 1 },
        "port": { "type": "integer" }
      }
    }
  }
}`

// validateDocument runs the resolved settings map through the JSON schema
// and reports every violation with its property path.
func validateDocument(settings map[string]interface{}) error {
	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding config for validation: %w", err)
	}

	schema := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(schemaJSON), schema); err != nil {
		return fmt.Errorf("parsing config schema: %w", err)
	}

	keyErrs, err := schema.ValidateBytes(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if len(keyErrs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(keyErrs))
	for _, ke := range keyErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", ke.PropertyPath, ke.Message))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
