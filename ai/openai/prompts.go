package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/gnosis/core"
)

const entityResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {
            "type": "string"
          },
          "type": {
            "type": "string"
          },
          "description": {
            "type": "string"
          },
          "confidence": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          }
        },
        "required": ["name", "type", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const entityPromptTemplate = `Extract the named entities from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names must be the exact surface form used in the text, without surrounding punctuation.
- Type field must match exactly one of the listed values: %s.
- Confidence is a number from 0.0 (pure guess) to 1.0 (certain). Rate how sure you are that this is a real, distinct entity.
- Include a short description only when the text itself defines or characterizes the entity.
- Include only entities that are explicitly mentioned in the text. Do not hallucinate.
- If no entities can be identified, return "entities": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "BERT, introduced by Devlin et al., builds on the Transformer architecture."
Output:
{
  "entities": [
    {"name":"BERT","type":"method","description":"a pretrained language model","confidence":0.95},
    {"name":"Devlin et al.","type":"person","confidence":0.85},
    {"name":"Transformer","type":"method","confidence":0.9}
  ]
}

Example (no entities):
Input: "The results are shown below."
Output:
{
  "entities": []
}`

const relationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {
            "type": "string"
          },
          "target": {
            "type": "string"
          },
          "type": {
            "type": "string"
          },
          "description": {
            "type": "string"
          },
          "confidence": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          }
        },
        "required": ["source", "target", "type", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["relations"],
  "additionalProperties": false
}`

const relationPromptTemplate = `Identify relations between the known entities in the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Source and target must each be one of the known entities: %s.
- Type field must match exactly one of the listed values: %s.
- A relation is directed: "BERT is based on the Transformer" gives source "BERT" and target "Transformer".
- Confidence is a number from 0.0 (pure guess) to 1.0 (the text states it outright).
- Include only relations the text states or clearly implies. Do not hallucinate.
- If no relations can be identified, return "relations": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "BERT builds on the Transformer and is evaluated on GLUE."
Known entities: BERT, Transformer, GLUE
Output:
{
  "relations": [
    {"source":"BERT","target":"Transformer","type":"based_on","confidence":0.95},
    {"source":"BERT","target":"GLUE","type":"uses","confidence":0.9}
  ]
}`

// buildEntityPrompt creates the system prompt with entity types embedded.
func buildEntityPrompt() string {
	return fmt.Sprintf(entityPromptTemplate,
		entityResponseSchema,
		joinEntityTypes())
}

// buildRelationPrompt creates the system prompt with the known entity names
// and relation types embedded.
func buildRelationPrompt(entities []string) string {
	return fmt.Sprintf(relationPromptTemplate,
		relationResponseSchema,
		strings.Join(entities, ", "),
		joinRelationTypes())
}

func joinEntityTypes() string {
	labels := make([]string, len(core.EntityTypes))
	for i, t := range core.EntityTypes {
		labels[i] = string(t)
	}
	return strings.Join(labels, ", ")
}

func joinRelationTypes() string {
	labels := make([]string, len(core.RelationTypes))
	for i, t := range core.RelationTypes {
		labels[i] = string(t)
	}
	return strings.Join(labels, ", ")
}
