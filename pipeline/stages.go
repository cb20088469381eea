package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/resolve"
	"golang.org/x/sync/errgroup"
)

// segmentExtraction carries one segment's extraction output into resolution.
type segmentExtraction struct {
	segment   *core.Segment
	entities  []core.EntityCandidate
	relations []ai.ExtractedRelation
}

// resolution carries the resolved canonical ids into indexing.
type resolution struct {
	entityIDs   []core.ID
	relationIDs []core.ID
}

// run drives one job through the stage machine. Stage transitions are strictly
// forward; any whole-stage failure or cancellation moves the job to the
// absorbing failed-partial state while keeping artifacts already produced.
func (c *Coordinator) run(ctx context.Context, job *core.Job) {
	job.State = core.JobStateRunning
	c.saveJob(ctx, job)

	segments, ok := c.segmentStage(ctx, job)
	if !ok {
		c.finish(ctx, job)
		return
	}

	if c.cancelled(ctx, job, core.StageExtracting) {
		return
	}
	extractions, ok := c.extractStage(ctx, job, segments)
	if !ok {
		c.finish(ctx, job)
		return
	}

	if c.cancelled(ctx, job, core.StageResolving) {
		return
	}
	resolved, ok := c.resolveStage(ctx, job, extractions)
	if !ok {
		c.finish(ctx, job)
		return
	}

	if c.cancelled(ctx, job, core.StageIndexing) {
		return
	}
	if !c.indexStage(ctx, job, segments, resolved) {
		c.finish(ctx, job)
		return
	}

	c.finish(ctx, job)
}

// segmentStage splits the document and persists its segments.
func (c *Coordinator) segmentStage(ctx context.Context, job *core.Job) ([]*core.Segment, bool) {
	c.startStage(ctx, job, core.StageSegmenting)

	doc, err := c.documents.GetDocument(ctx, job.DocumentId)
	if err != nil {
		return nil, c.failStage(ctx, job, core.StageSegmenting, err)
	}

	segments, err := c.segmenter.Segment(doc)
	if err != nil {
		return nil, c.failStage(ctx, job, core.StageSegmenting, err)
	}

	if _, err := c.documents.AddSegments(ctx, segments...); err != nil {
		return nil, c.failStage(ctx, job, core.StageSegmenting, err)
	}

	c.succeedStage(ctx, job, core.StageSegmenting)
	return segments, true
}

// extractStage runs entity and relation extraction across segments in
// parallel. Per-segment extraction failures are recorded on the job and the
// segment is skipped; they never fail the stage.
func (c *Coordinator) extractStage(ctx context.Context, job *core.Job, segments []*core.Segment) ([]segmentExtraction, bool) {
	c.startStage(ctx, job, core.StageExtracting)

	extractions := make([]segmentExtraction, len(segments))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, seg := range segments {
		g.Go(func() error {
			extracted, err := c.entityExtractor.ExtractEntities(gctx, seg.Content)
			if err != nil {
				c.logger.Warn("entity extraction failed", "segment", seg.Id, "err", err)
				mu.Lock()
				job.Errors = append(job.Errors, fmt.Sprintf("segment %d: %v", seg.Id, err))
				mu.Unlock()
				return nil
			}

			candidates := make([]core.EntityCandidate, 0, len(extracted))
			names := make([]string, 0, len(extracted))
			for _, e := range extracted {
				candidates = append(candidates, entityCandidate(e, seg.Id))
				names = append(names, e.Name)
			}

			var relations []ai.ExtractedRelation
			if len(names) > 1 {
				relations, err = c.relationExtractor.ExtractRelations(gctx, seg.Content, names)
				if err != nil {
					c.logger.Warn("relation extraction failed", "segment", seg.Id, "err", err)
					mu.Lock()
					job.Errors = append(job.Errors, fmt.Sprintf("segment %d: %v", seg.Id, err))
					mu.Unlock()
					relations = nil
				}
			}

			extractions[i] = segmentExtraction{segment: seg, entities: candidates, relations: relations}
			return nil
		})
	}
	// Goroutines report failures through the job record, not the group.
	_ = g.Wait()

	c.succeedStage(ctx, job, core.StageExtracting)
	return extractions, true
}

// resolveStage resolves entity candidates into canonical entities, then maps
// each segment's relation proposals onto the resolved ids and resolves those.
// Entity resolution for a segment always completes before its relations are
// keyed, so endpoints refer to final canonical ids.
func (c *Coordinator) resolveStage(ctx context.Context, job *core.Job, extractions []segmentExtraction) (*resolution, bool) {
	c.startStage(ctx, job, core.StageResolving)

	entitySet := make(map[core.ID]struct{})
	relationSet := make(map[core.ID]struct{})

	for _, ex := range extractions {
		if len(ex.entities) == 0 {
			continue
		}

		res, err := c.entityResolver.Resolve(ctx, ex.entities)
		if err != nil {
			return nil, c.failStage(ctx, job, core.StageResolving, err)
		}
		for _, warning := range res.Warnings {
			job.Errors = append(job.Errors, warning.Error())
		}
		for _, id := range res.IDs {
			entitySet[id] = struct{}{}
		}

		candidates := relationCandidates(ex, res)
		if len(candidates) == 0 {
			continue
		}
		ids, err := c.relationResolver.Resolve(ctx, candidates)
		if err != nil {
			return nil, c.failStage(ctx, job, core.StageResolving, err)
		}
		for _, id := range ids {
			relationSet[id] = struct{}{}
		}
	}

	c.succeedStage(ctx, job, core.StageResolving)

	resolved := &resolution{}
	for id := range entitySet {
		resolved.entityIDs = append(resolved.entityIDs, id)
	}
	for id := range relationSet {
		resolved.relationIDs = append(resolved.relationIDs, id)
	}
	return resolved, true
}

// indexStage embeds segments and entities into the embedding index and
// projects resolved entities and relations into the graph store.
func (c *Coordinator) indexStage(ctx context.Context, job *core.Job, segments []*core.Segment, resolved *resolution) bool {
	c.startStage(ctx, job, core.StageIndexing)

	// Segment embeddings
	contents := make([]string, len(segments))
	for i, seg := range segments {
		contents[i] = ai.SegmentEmbeddingText(seg)
	}
	vectors, err := c.embedder.EmbedTexts(ctx, contents)
	if err != nil {
		return c.failStage(ctx, job, core.StageIndexing, err)
	}
	for i, seg := range segments {
		seg.Vector = vectors[i]
	}
	if _, err := c.documents.UpdateSegments(ctx, segments...); err != nil {
		return c.failStage(ctx, job, core.StageIndexing, err)
	}
	docID := job.DocumentId.String()
	for _, seg := range segments {
		metadata := map[string]string{"document_id": docID, "kind": string(seg.Kind)}
		if err := c.index.Upsert(ctx, index.KindSegment, seg.Id, seg.Vector, metadata); err != nil {
			return c.failStage(ctx, job, core.StageIndexing, err)
		}
	}

	// Entity embeddings and graph nodes
	entities, err := c.entities.GetEntities(ctx, resolved.entityIDs...)
	if err != nil {
		return c.failStage(ctx, job, core.StageIndexing, err)
	}
	for _, entity := range entities {
		vector, err := c.embedder.EmbedText(ctx, ai.EntityEmbeddingText(entity))
		if err != nil {
			return c.failStage(ctx, job, core.StageIndexing, err)
		}
		entity.Vector = vector
		if err := c.entities.Put(ctx, entity); err != nil {
			return c.failStage(ctx, job, core.StageIndexing, err)
		}

		metadata := map[string]string{"type": string(entity.Type)}
		if err := c.index.Upsert(ctx, index.KindEntity, entity.Id, vector, metadata); err != nil {
			return c.failStage(ctx, job, core.StageIndexing, err)
		}
		c.graph.UpsertNode(entity)
	}

	// Graph edges after all nodes exist
	for _, id := range resolved.relationIDs {
		relation, err := c.relations.Get(ctx, id)
		if err != nil {
			return c.failStage(ctx, job, core.StageIndexing, err)
		}
		if err := c.graph.UpsertEdge(relation); err != nil {
			// Endpoint missing from the graph; record and keep going
			job.Errors = append(job.Errors, fmt.Sprintf("relation %d: %v", id, err))
		}
	}

	c.succeedStage(ctx, job, core.StageIndexing)
	return true
}

// entityCandidate converts an extraction proposal into a resolvable candidate.
// Unknown type labels map to the catch-all type with the label preserved.
func entityCandidate(e ai.ExtractedEntity, segmentID core.ID) core.EntityCandidate {
	typ, known := core.ParseEntityType(e.Type)
	candidate := core.EntityCandidate{
		Name:        e.Name,
		Type:        typ,
		Description: e.Description,
		SegmentId:   segmentID,
		Confidence:  e.Confidence,
	}
	if !known {
		candidate.Subtype = e.Type
	}
	if candidate.Confidence == 0 {
		candidate.Confidence = ai.DefaultConfidence
	}
	return candidate
}

// relationCandidates maps a segment's relation proposals onto resolved entity
// ids. Relation proposals reference endpoints by surface name only, so a
// proposal is dropped when its endpoint name did not resolve, resolved under
// more than one type, or collapsed onto the same canonical entity after
// merging.
func relationCandidates(ex segmentExtraction, res *resolve.EntityResolution) []core.RelationCandidate {
	candidates := make([]core.RelationCandidate, 0, len(ex.relations))
	for _, rel := range ex.relations {
		sourceID, okSource := res.ByName(rel.Source)
		targetID, okTarget := res.ByName(rel.Target)
		if !okSource || !okTarget || sourceID == targetID {
			continue
		}

		typ, known := core.ParseRelationType(rel.Type)
		candidate := core.RelationCandidate{
			SourceId:    sourceID,
			TargetId:    targetID,
			Type:        typ,
			Description: rel.Description,
			SegmentId:   ex.segment.Id,
			Confidence:  rel.Confidence,
		}
		if !known {
			candidate.Subtype = rel.Type
		}
		if candidate.Confidence == 0 {
			candidate.Confidence = ai.DefaultConfidence
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// Stage bookkeeping

func (c *Coordinator) startStage(ctx context.Context, job *core.Job, stage core.Stage) {
	job.SetStageStatus(stage, core.StageStatusRunning)
	c.saveJob(ctx, job)
}

func (c *Coordinator) succeedStage(ctx context.Context, job *core.Job, stage core.Stage) {
	job.SetStageStatus(stage, core.StageStatusSucceeded)
	c.saveJob(ctx, job)
}

// failStage marks the stage failed and moves the job to failed-partial.
// Always returns false so callers can return its result directly.
func (c *Coordinator) failStage(ctx context.Context, job *core.Job, stage core.Stage, err error) bool {
	c.logger.Error("stage failed", "job", job.Id, "stage", stage, "err", err)
	job.SetStageStatus(stage, core.StageStatusFailed)
	job.Errors = append(job.Errors, fmt.Sprintf("%s: %v", stage, err))
	c.skipRemaining(job, stage)
	job.State = core.JobStateFailedPartial
	return false
}

// cancelled checks for cancellation before a stage starts. A cancelled job
// keeps everything produced so far and records the reason.
func (c *Coordinator) cancelled(ctx context.Context, job *core.Job, next core.Stage) bool {
	if ctx.Err() == nil {
		return false
	}
	job.Errors = append(job.Errors, fmt.Sprintf("cancelled before %s: %v", next, ctx.Err()))
	job.SetStageStatus(next, core.StageStatusSkipped)
	c.skipRemaining(job, next)
	job.State = core.JobStateFailedPartial
	c.saveJob(context.WithoutCancel(ctx), job)
	return true
}

// skipRemaining marks every stage after the given one as skipped.
func (c *Coordinator) skipRemaining(job *core.Job, after core.Stage) {
	seen := false
	for _, stage := range core.Stages {
		if seen {
			job.SetStageStatus(stage, core.StageStatusSkipped)
		}
		if stage == after {
			seen = true
		}
	}
}

// finish settles the terminal state and persists the job.
func (c *Coordinator) finish(ctx context.Context, job *core.Job) {
	if job.State != core.JobStateFailedPartial {
		job.State = core.JobStateDone
	}
	c.saveJob(context.WithoutCancel(ctx), job)
	c.logger.Info("job finished", "job", job.Id, "state", job.State, "errors", len(job.Errors))
}

func (c *Coordinator) saveJob(ctx context.Context, job *core.Job) {
	if err := c.jobs.PutJob(ctx, job); err != nil {
		c.logger.Error("error persisting job", "job", job.Id, "err", err)
	}
}
