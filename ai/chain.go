package ai

import (
	"context"
	"errors"
)

// EntityExtractorChain runs several extraction strategies in order and
// concatenates their results. A deployment composes strategies (for example a
// fast rule-based pass plus a model-based pass) instead of subclassing a
// monolithic extractor; duplicates across strategies are handled by the
// resolver, not here.
type EntityExtractorChain []EntityExtractor

var _ EntityExtractor = (EntityExtractorChain)(nil)

// ExtractEntities runs every strategy and concatenates the proposals.
// A strategy failure does not abort the chain: remaining strategies still run
// and their results are returned together with the joined errors.
func (c EntityExtractorChain) ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, error) {
	var all []ExtractedEntity
	var errs []error
	for _, extractor := range c {
		extracted, err := extractor.ExtractEntities(ctx, text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, extracted...)
	}
	return all, errors.Join(errs...)
}

// RelationExtractorChain is the relation counterpart of EntityExtractorChain.
type RelationExtractorChain []RelationExtractor

var _ RelationExtractor = (RelationExtractorChain)(nil)

// ExtractRelations runs every strategy and concatenates the proposals.
func (c RelationExtractorChain) ExtractRelations(ctx context.Context, text string, entities []string) ([]ExtractedRelation, error) {
	var all []ExtractedRelation
	var errs []error
	for _, extractor := range c {
		extracted, err := extractor.ExtractRelations(ctx, text, entities)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, extracted...)
	}
	return all, errors.Join(errs...)
}
