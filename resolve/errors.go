package resolve

import "errors"

// ErrAmbiguousMerge indicates a candidate matched an existing canonical entity
// above the review band but below the merge threshold. The candidate is kept
// as a separate entity flagged for manual review, never force-merged and never
// dropped.
var ErrAmbiguousMerge = errors.New("ambiguous merge")
