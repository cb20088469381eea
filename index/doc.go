// Package index provides the fixed-dimension embedding index used for
// semantic search over segments and entities.
//
// The Index contract: upserts are atomic per (kind, id), queries observe a
// consistent snapshot and rank by descending cosine similarity with ties
// broken by kind then id, and any vector whose length disagrees with the
// index's dimension fails that call with ErrDimensionMismatch. The in-memory
// implementation is rebuilt from storage on database open.
package index
