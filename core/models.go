package core

import (
	"encoding/hex"
	"maps"
	"slices"

	"github.com/go-crypt/x/blake2b"
)

// ProvenanceID is the globally unique identifier assigned to a post or image
// by the provenance registry. Zero means unassigned.
type ProvenanceID uint64

// ImageID is the content-addressed identifier of an image.
type ImageID string

// ImageIDFromContent derives an image identifier from the image bytes and its
// file name using BLAKE2b hashing. Identical (bytes, filename) pairs always
// produce identical IDs; the same bytes under a different name do not.
func ImageIDFromContent(blob []byte, fileName string) ImageID {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(blob)
	h.Write([]byte(fileName))
	return ImageID(hex.EncodeToString(h.Sum(nil)))
}

// User is a participant in a post. Two users are the same entity iff their
// screen names match.
type User struct {
	ID         string
	ScreenName string
	Name       string // Optional display name
}

// Same reports whether u and other refer to the same account.
func (u User) Same(other User) bool {
	return u.ScreenName == other.ScreenName
}

// Reference points at another post and its author.
type Reference struct {
	PostID string
	User   User
}

// PhotoRef is a photo attachment as it appears in the source record,
// before its content has been fetched.
type PhotoRef struct {
	ID       string
	MediaURL string
}

// Image is a fetched attachment. Construct with NewImage so the ID is
// computed exactly once.
type Image struct {
	id        ImageID
	Blob      []byte
	SourceURI string
	FileName  string
}

// NewImage creates an Image and computes its content-addressed ID.
func NewImage(blob []byte, sourceURI, fileName string) Image {
	return Image{
		id:        ImageIDFromContent(blob, fileName),
		Blob:      blob,
		SourceURI: sourceURI,
		FileName:  fileName,
	}
}

// ID returns the content-addressed identifier of the image.
func (i Image) ID() ImageID {
	return i.id
}

// Post is the normalized form of one ingested social-media record.
// RepliedTo and Retweeted are mutually exclusive.
type Post struct {
	ID           string
	Author       User
	Mentions     []User     // In source order, duplicates allowed
	RepliedTo    *Reference // Optional
	Retweeted    *Reference // Optional
	Photos       []PhotoRef // Photo attachments named by the record
	Images       map[ImageID]Image
	ProvenanceID ProvenanceID
	Source       string // Normalized source client name
	Raw          []byte // Original payload, annotated with generated ids before hand-off
}

// HasAttachments reports whether the post carries at least one image.
func (p *Post) HasAttachments() bool {
	return len(p.Images) > 0
}

// ImageIDs returns the content-addressed IDs of all attached images in
// ascending order.
func (p *Post) ImageIDs() []ImageID {
	return slices.Sorted(maps.Keys(p.Images))
}

// AddImage attaches an image, keyed by its content-addressed ID.
func (p *Post) AddImage(img Image) {
	if p.Images == nil {
		p.Images = make(map[ImageID]Image)
	}
	p.Images[img.ID()] = img
}
