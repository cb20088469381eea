package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/gnosis/core"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	documentSourcePrefix = "docsrc"
	segmentRecordPrefix  = "segrec"
	segmentDocPrefix     = "segdoc"
	entityRecordPrefix   = "entrec"
	entityNamePrefix     = "entnam"
	relationRecordPrefix = "relrec"
	relationEntityPrefix = "relent"
	jobRecordPrefix      = "jobrec"
	jobDocPrefix         = "jobdoc"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentRecordPrefix, id))
}

// makeDocumentSourceKey generates a key for the source index.
// The value is the ID of the latest version for that source.
func makeDocumentSourceKey(sourceID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentSourcePrefix, sourceID))
}

// makeSegmentKey generates a key for a segment by ID.
func makeSegmentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", segmentRecordPrefix, id))
}

// makeSegmentDocKey generates a composite key for the document index.
// Format: prefix:documentID:position
func makeSegmentDocKey(documentID core.ID, position int) []byte {
	prefix := segmentDocPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for documentID + 8 bytes for position
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	return buf
}

// makePartialSegmentDocKey generates a partial key for per-document scans.
// Format: prefix:documentID
func makePartialSegmentDocKey(documentID core.ID) []byte {
	prefix := segmentDocPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for documentID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", entityRecordPrefix, id))
}

// makeEntityNameKey generates a composite key for entity lookup by
// (type, normalized name). Each alias of an entity gets its own entry.
// Format: prefix:type\x00name
func makeEntityNameKey(normalized string, entityType core.EntityType) []byte {
	prefix := entityNamePrefix + ":"
	typ := string(entityType)
	totalSize := len(prefix) + len(typ) + 1 + len(normalized)
	buf := make([]byte, totalSize)
	offset := copy(buf, []byte(prefix))
	offset += copy(buf[offset:], []byte(typ))
	buf[offset] = 0x00
	offset++
	copy(buf[offset:], []byte(normalized))
	return buf
}

// makeRelationKey generates a key for a relation by ID.
func makeRelationKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", relationRecordPrefix, id))
}

// makeRelationEntityKey generates a composite key for the endpoint index.
// Format: prefix:entityID:relationID
func makeRelationEntityKey(entityID, relationID core.ID) []byte {
	prefix := relationEntityPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for entityID + 8 bytes for relationID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(relationID))
	return buf
}

// makePartialRelationEntityKey generates a partial key for endpoint queries.
// Format: prefix:entityID
func makePartialRelationEntityKey(entityID core.ID) []byte {
	prefix := relationEntityPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for entityID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityID))
	return buf
}

// makeJobKey generates a key for a job by its UUID.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobRecordPrefix, id))
}

// makeJobDocKey generates a composite key for the document index.
// Format: prefix:documentID:jobID
func makeJobDocKey(documentID core.ID, jobID string) []byte {
	prefix := jobDocPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 + len(jobID)
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	copy(buf[offset:], []byte(jobID))
	return buf
}

// makePartialJobDocKey generates a partial key for per-document job scans.
func makePartialJobDocKey(documentID core.ID) []byte {
	prefix := jobDocPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
