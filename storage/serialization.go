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


package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/graph"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ImageRecord is an image as persisted by an ImageIndex.
type ImageRecord struct {
	ID         core.ImageID    `json:"id"`
	FileName   string          `json:"file_name"`
	SourceURI  string          `json:"source_uri"`
	ParentURI  string          `json:"parent_uri"`
	Blob       []byte          `json:"blob"`
	Visibility core.Visibility `json:"visibility"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// MarshalProvenanceID serializes an id as 8 big-endian bytes.
func MarshalProvenanceID(id core.ProvenanceID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalProvenanceID deserializes an id written by MarshalProvenanceID.
func UnmarshalProvenanceID(data []byte) (core.ProvenanceID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: provenance id has %d bytes", ErrSerializationFailed, len(data))
	}
	return core.ProvenanceID(binary.BigEndian.Uint64(data)), nil
}

// MarshalLineage serializes a LineageRecord to bytes.
func MarshalLineage(record *LineageRecord) ([]byte, error) {
	return marshal(record)
}

// UnmarshalLineage deserializes a LineageRecord from bytes.
func UnmarshalLineage(data []byte) (*LineageRecord, error) {
	return unmarshal[LineageRecord](data)
}

// MarshalVertex serializes a Vertex to bytes.
func MarshalVertex(v *graph.Vertex) ([]byte, error) {
	return marshal(v)
}

// UnmarshalVertex deserializes a Vertex from bytes.
func UnmarshalVertex(data []byte) (*graph.Vertex, error) {
	return unmarshal[graph.Vertex](data)
}

// MarshalEdge serializes an Edge to bytes.
func MarshalEdge(e *graph.Edge) ([]byte, error) {
	return marshal(e)
}

// UnmarshalEdge deserializes an Edge from bytes.
func UnmarshalEdge(data []byte) (*graph.Edge, error) {
	return unmarshal[graph.Edge](data)
}

// MarshalSchema serializes a Schema to bytes.
func MarshalSchema(s *graph.Schema) ([]byte, error) {
	return marshal(s)
}

// UnmarshalSchema deserializes a Schema from bytes.
func UnmarshalSchema(data []byte) (*graph.Schema, error) {
	return unmarshal[graph.Schema](data)
}

// MarshalImage serializes an ImageRecord to bytes.
func MarshalImage(record *ImageRecord) ([]byte, error) {
	return marshal(record)
}

// UnmarshalImage deserializes an ImageRecord from bytes.
func UnmarshalImage(data []byte) (*ImageRecord, error) {
	return unmarshal[ImageRecord](data)
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return marshal(checkpoint)
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return unmarshal[core.Checkpoint](data)
}

// MarshalVisibility serializes a Visibility to bytes.
func MarshalVisibility(vis core.Visibility) ([]byte, error) {
	return marshal(vis)
}

// UnmarshalVisibility deserializes a Visibility from bytes.
func UnmarshalVisibility(data []byte) (core.Visibility, error) {
	v, err := unmarshal[core.Visibility](data)
	if err != nil {
		return core.Visibility{}, err
	}
	return *v, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}
