package sink

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/provenance"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// ImageSink registers and ingests the images attached to each post.
type ImageSink struct {
	index     storage.ImageIndex
	registrar *provenance.Registrar
	cred      security.Credential
	logger    *slog.Logger
}

var _ Sink = (*ImageSink)(nil)

// NewImageSink creates a sink that registers images through registrar
// before handing them to index.
func NewImageSink(index storage.ImageIndex, registrar *provenance.Registrar, cred security.Credential, logger *slog.Logger) (*ImageSink, error) {
	if index == nil || registrar == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageSink{
		index:     index,
		registrar: registrar,
		cred:      cred,
		logger:    logger.With("component", "sink", "sink", "image"),
	}, nil
}

func (s *ImageSink) Name() string { return "image" }

func (s *ImageSink) Init(ctx context.Context) error { return nil }

// Deliver registers every image with the post as parent, ingests them and
// checks that the index returned exactly the post's image ids. A failed
// registration abandons the whole batch before anything is ingested.
func (s *ImageSink) Deliver(ctx context.Context, d Delivery) error {
	post := d.Post
	if !post.HasAttachments() {
		return nil
	}

	var (
		errs []error
		docs []storage.ImageDocument
	)
	want := post.ImageIDs()
	parent := provenance.PostURI(post.ID)
	for _, id := range want {
		img := post.Images[id]
		regID, err := s.registrar.RegisterImage(ctx, post.ID, img)
		if err != nil {
			s.logger.Warn("image registration failed", "post", post.ID, "file", img.FileName, "error", err)
			errs = append(errs, err)
			continue
		}
		docs = append(docs, storage.ImageDocument{
			FileName:   img.FileName,
			SourceURI:  img.SourceURI,
			ParentURI:  parent,
			Blob:       img.Blob,
			Visibility: d.Visibility.WithProvenanceID(regID),
		})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	results, err := s.index.IngestDocuments(ctx, s.cred, docs)
	if err != nil {
		return &StoreError{Sink: s.Name(), Op: "ingest", Err: err}
	}

	var returned []core.ImageID
	for _, r := range results {
		returned = append(returned, r.ImageIDs...)
	}
	missing, unexpected := difference(want, returned)
	if len(missing) > 0 || len(unexpected) > 0 {
		return &ConsistencyError{PostID: post.ID, Missing: missing, Unexpected: unexpected}
	}
	s.logger.Debug("images ingested", "post", post.ID, "count", len(returned))
	return nil
}

// difference returns the sorted ids only in want and only in got.
func difference(want, got []core.ImageID) (missing, unexpected []core.ImageID) {
	wantSet := make(map[core.ImageID]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
	}
	gotSet := make(map[core.ImageID]struct{}, len(got))
	for _, id := range got {
		gotSet[id] = struct{}{}
		if _, ok := wantSet[id]; !ok {
			unexpected = append(unexpected, id)
		}
	}
	for id := range wantSet {
		if _, ok := gotSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	unexpected = slices.Compact(slices.Sorted(slices.Values(unexpected)))
	return missing, unexpected
}
