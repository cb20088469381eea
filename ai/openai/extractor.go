// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/gnosis/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client        llms.Model
	minConfidence float64
	logger        *slog.Logger
}

// entityRecord is an internal type used for JSON unmarshaling.
// It matches the structure expected from the LLM.
type entityRecord struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// entityAnalysis is the wrapper structure for the LLM's JSON response.
type entityAnalysis struct {
	Entities []entityRecord `json:"entities"`
}

// relationRecord is an internal type used for JSON unmarshaling.
type relationRecord struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// relationAnalysis is the wrapper structure for the LLM's JSON response.
type relationAnalysis struct {
	Relations []relationRecord `json:"relations"`
}

func newChatClient(config *ai.Config) (llms.Model, error) {
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	return openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := newChatClient(config)
	if err != nil {
		return nil, err
	}

	return &EntityExtractor{
		client:        client,
		minConfidence: config.MinConfidence,
		logger:        slog.Default().With("component", "openai-entity-extractor"),
	}, nil
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractEntities extracts named entities from text using an LLM.
// It applies confidence filtering and returns only entities above the minimum
// threshold, highest confidence first.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	var result entityAnalysis
	if err := generateJSON(ctx, e.client, e.logger, buildEntityPrompt(), text, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrExtraction, err)
	}

	extracted := make([]ai.ExtractedEntity, 0, len(result.Entities))
	for _, record := range result.Entities {
		if record.Name == "" || record.Confidence < e.minConfidence {
			continue
		}
		extracted = append(extracted, ai.ExtractedEntity{
			Name:        record.Name,
			Type:        strings.ReplaceAll(record.Type, " ", "_"),
			Description: record.Description,
			Confidence:  record.Confidence,
		})
	}

	slices.SortFunc(extracted, func(a, b ai.ExtractedEntity) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})

	e.logger.Debug("extracted entities",
		"total", len(result.Entities),
		"filtered", len(extracted))

	return extracted, nil
}

// RelationExtractor implements ai.RelationExtractor using OpenAI-compatible chat APIs.
type RelationExtractor struct {
	client        llms.Model
	minConfidence float64
	logger        *slog.Logger
}

// newRelationExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newRelationExtractor(config *ai.Config) (*RelationExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := newChatClient(config)
	if err != nil {
		return nil, err
	}

	return &RelationExtractor{
		client:        client,
		minConfidence: config.MinConfidence,
		logger:        slog.Default().With("component", "openai-relation-extractor"),
	}, nil
}

// NewRelationExtractor creates a new relation extractor using the provided configuration.
//
// Returns ai.RelationExtractor interface to enforce abstraction.
func NewRelationExtractor(config *ai.Config) (ai.RelationExtractor, error) {
	return newRelationExtractor(config)
}

// ExtractRelations identifies relations between the known entities using an LLM.
// Relations whose endpoints are not in the entities list are discarded, so the
// model cannot introduce endpoints the entity pass did not produce.
func (e *RelationExtractor) ExtractRelations(ctx context.Context, text string, entities []string) ([]ai.ExtractedRelation, error) {
	if len(entities) < 2 {
		return []ai.ExtractedRelation{}, nil
	}

	var result relationAnalysis
	if err := generateJSON(ctx, e.client, e.logger, buildRelationPrompt(entities), text, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrExtraction, err)
	}

	known := make(map[string]string, len(entities))
	for _, name := range entities {
		known[strings.ToLower(name)] = name
	}

	extracted := make([]ai.ExtractedRelation, 0, len(result.Relations))
	for _, record := range result.Relations {
		source, sourceOK := known[strings.ToLower(record.Source)]
		target, targetOK := known[strings.ToLower(record.Target)]
		if !sourceOK || !targetOK || source == target {
			continue
		}
		if record.Confidence < e.minConfidence {
			continue
		}
		extracted = append(extracted, ai.ExtractedRelation{
			Source:      source,
			Target:      target,
			Type:        strings.ReplaceAll(record.Type, " ", "_"),
			Description: record.Description,
			Confidence:  record.Confidence,
		})
	}

	e.logger.Debug("extracted relations",
		"total", len(result.Relations),
		"filtered", len(extracted))

	return extracted, nil
}

// generateJSON sends a system+user prompt pair in JSON mode and unmarshals the
// response into out. It retries up to 3 times on malformed JSON, running the
// response through repairJSON first.
func generateJSON(ctx context.Context, client llms.Model, logger *slog.Logger, systemPrompt, text string, out any) error {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}

		if len(response.Choices) < 1 {
			logger.Debug("no choices returned from model")
			return nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		return nil
	}

	logger.Error("failed to parse extractor response after retries", "err", lastErr)
	return lastErr
}
