// Package rule implements deterministic, offline extraction strategies.
//
// The extractors here use surface heuristics only: capitalization runs and
// acronyms for entities, verb cues and sentence co-occurrence for relations.
// They trade recall for zero external dependencies, so they serve both as the
// default strategy when no model endpoint is configured and as the cheap first
// pass of an extraction chain.
package rule
