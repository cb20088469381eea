// Package reindex re-embeds stored segments and entities after an embedding
// model change.
//
// This package supports batch processing with checkpointed resume, progress
// tracking, retry logic with exponential backoff, and vector normalization to
// ensure compatibility with cosine similarity search.
package reindex
