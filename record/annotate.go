package record

import (
	"fmt"

	"github.com/poiesic/postflow/core"
	"github.com/tidwall/sjson"
)

// Keys written into the raw payload by Annotate.
const (
	KeyProvenanceID = "provenance_id"
	KeyImageIDs     = "image_ids"
)

// Annotate returns a copy of raw with the provenance id and the
// content-addressed image ids appended. The input slice is not modified.
func Annotate(raw []byte, id core.ProvenanceID, images []core.ImageID) ([]byte, error) {
	out, err := sjson.SetBytes(raw, KeyProvenanceID, uint64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to annotate %s: %w", KeyProvenanceID, err)
	}

	ids := make([]string, len(images))
	for i, img := range images {
		ids[i] = string(img)
	}
	out, err = sjson.SetBytes(out, KeyImageIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate %s: %w", KeyImageIDs, err)
	}
	return out, nil
}
