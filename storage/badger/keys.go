package badger

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/graph"
)

// Key prefixes for different data types
const (
	lineageRecordPrefix = "provrec"
	lineageURIPrefix    = "provuri"
	lineageRulePrefix   = "provrule"
	lineageIDSeq        = "provseq"
	graphSchemaPrefix   = "gschema"
	graphVertexPrefix   = "gvert"
	graphEdgePrefix     = "gedge"
	imageRecordPrefix   = "imgrec"
	checkpointPrefix    = "chkpt"
)

// keySep separates variable-length components of composite keys.
const keySep = "\x00"

// makeLineageKey generates a key for a lineage record by ID.
// Format: prefix:id (8 bytes, BigEndian)
func makeLineageKey(id core.ProvenanceID) []byte {
	prefix := []byte(lineageRecordPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeLineageURIKey generates the index key mapping a URI to its ID.
func makeLineageURIKey(uri string) []byte {
	return []byte(fmt.Sprintf("%s:%s", lineageURIPrefix, uri))
}

// makeAgeOffRuleKey generates a key for a known age-off rule.
func makeAgeOffRuleKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", lineageRulePrefix, name))
}

// makeSchemaKey generates a key for a graph schema.
func makeSchemaKey(graphName string) []byte {
	return []byte(fmt.Sprintf("%s:%s", graphSchemaPrefix, graphName))
}

// makeVertexKey generates a key for a vertex.
// Format: prefix:graph\x00vertexID
func makeVertexKey(graphName, id string) []byte {
	return []byte(graphVertexPrefix + ":" + strings.Join([]string{graphName, id}, keySep))
}

// makeEdgeKey generates a key for an edge. Edges from the same vertex share
// a prefix and sort by label, then target, then originating post.
// Format: prefix:graph\x00out\x00label\x00in\x00postID
func makeEdgeKey(graphName string, e graph.Edge) []byte {
	postID := ""
	if p, ok := e.Property(graph.KeyTweetID); ok {
		postID = p.Value
	}
	return []byte(graphEdgePrefix + ":" + strings.Join(
		[]string{graphName, e.Out, string(e.Label), e.In, postID}, keySep))
}

// makePartialEdgeKey generates a prefix matching all edges leaving a vertex.
// Format: prefix:graph\x00out\x00
func makePartialEdgeKey(graphName, out string) []byte {
	return []byte(graphEdgePrefix + ":" + strings.Join([]string{graphName, out, ""}, keySep))
}

// makeImageKey generates a key for an image by content ID.
func makeImageKey(id core.ImageID) []byte {
	return []byte(fmt.Sprintf("%s:%s", imageRecordPrefix, id))
}

// makeCheckpointKey generates a key for dispatcher checkpoints.
func makeCheckpointKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, name))
}
