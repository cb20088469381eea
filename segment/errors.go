package segment

import "errors"

// ErrNoExtractableText indicates the document contains no text to split.
// This is fatal for the job that triggered segmentation.
var ErrNoExtractableText = errors.New("document has no extractable text")
