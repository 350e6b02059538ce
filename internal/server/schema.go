package server

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// chatRequestSchema is the JSON Schema for chat request bodies
const chatRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["prompt", "session_id"],
  "properties": {
    "prompt": {
      "type": "string",
      "minLength": 1,
      "maxLength": 5000
    },
    "session_id": {
      "type": "string",
      "minLength": 5
    }
  },
  "additionalProperties": false
}`

type chatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

var chatSchemaLoader = gojsonschema.NewStringLoader(chatRequestSchema)

// parseChatRequest validates a chat body against the schema and decodes it
func parseChatRequest(body []byte) (chatRequest, error) {
	result, err := gojsonschema.Validate(chatSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return chatRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, verr := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += verr.String()
		}
		return chatRequest{}, fmt.Errorf("invalid chat request: %s", errMsg)
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return chatRequest{}, fmt.Errorf("failed to decode chat request: %w", err)
	}
	return req, nil
}
