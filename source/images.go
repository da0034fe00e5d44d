package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/postflow/core"
)

// ImageLoader attaches image payloads to a parsed post.
type ImageLoader interface {
	// LoadImages attaches one core.Image per photo reference of post.
	// A reference that cannot be resolved is a *core.MalformedRecordError.
	LoadImages(post *core.Post) error
}

// NoImages is an ImageLoader that leaves posts without images.
type NoImages struct{}

func (NoImages) LoadImages(*core.Post) error { return nil }

// DirImageLoader resolves photo references against a directory where each
// photo is stored as <photo id>.<extension>.
type DirImageLoader struct {
	Dir string
}

// LoadImages reads the single file matching each photo id. No match or
// more than one match makes the record malformed.
func (l DirImageLoader) LoadImages(post *core.Post) error {
	if len(post.Photos) == 0 {
		return nil
	}
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return fmt.Errorf("failed to read image directory: %w", err)
	}

	for i, ref := range post.Photos {
		field := fmt.Sprintf("entities.media.%d", i)
		var matches []string
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasPrefix(entry.Name(), ref.ID+".") {
				matches = append(matches, entry.Name())
			}
		}
		switch len(matches) {
		case 0:
			return core.Invalid(field, fmt.Sprintf("has no image file for photo %s", ref.ID))
		case 1:
		default:
			return core.Invalid(field, fmt.Sprintf("has %d image files for photo %s", len(matches), ref.ID))
		}

		fileName := matches[0]
		blob, err := os.ReadFile(filepath.Join(l.Dir, fileName))
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", fileName, err)
		}
		post.AddImage(core.NewImage(blob, ref.MediaURL, fileName))
	}
	return nil
}
