package core

import (
	"testing"
)

func TestImageIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		blob     []byte
		fileName string
	}{
		{
			name:     "same content produces same ID",
			blob:     []byte("test content"),
			fileName: "photo.jpg",
		},
		{
			name:     "empty blob",
			blob:     nil,
			fileName: "empty.png",
		},
		{
			name:     "empty file name",
			blob:     []byte{0xff, 0xd8, 0xff},
			fileName: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := ImageIDFromContent(tt.blob, tt.fileName)
			id2 := ImageIDFromContent(tt.blob, tt.fileName)

			if id1 != id2 {
				t.Errorf("ImageIDFromContent() produced different IDs for same content: %s vs %s", id1, id2)
			}
			if len(id1) != 64 {
				t.Errorf("ImageIDFromContent() length = %d, want 64 hex chars", len(id1))
			}
		})
	}
}

func TestImageIDFromContent_DifferentFileName(t *testing.T) {
	blob := []byte("identical bytes")
	id1 := ImageIDFromContent(blob, "a.jpg")
	id2 := ImageIDFromContent(blob, "b.jpg")

	if id1 == id2 {
		t.Errorf("ImageIDFromContent() produced same ID for different file names")
	}
}

func TestImageIDFromContent_DifferentBytes(t *testing.T) {
	id1 := ImageIDFromContent([]byte("content1"), "x.jpg")
	id2 := ImageIDFromContent([]byte("content2"), "x.jpg")

	if id1 == id2 {
		t.Errorf("ImageIDFromContent() produced same ID for different content")
	}
}

func TestNewImage(t *testing.T) {
	img := NewImage([]byte("pixels"), "http://pbs.example/1.jpg", "1.jpg")

	if img.ID() != ImageIDFromContent([]byte("pixels"), "1.jpg") {
		t.Errorf("NewImage() ID = %s, want content-derived ID", img.ID())
	}
	if img.SourceURI != "http://pbs.example/1.jpg" {
		t.Errorf("NewImage() SourceURI = %q", img.SourceURI)
	}
}

func TestPost_AddImageAndIDs(t *testing.T) {
	p := &Post{ID: "1"}
	if p.HasAttachments() {
		t.Fatal("new post should have no attachments")
	}

	a := NewImage([]byte("a"), "", "a.jpg")
	b := NewImage([]byte("b"), "", "b.jpg")
	p.AddImage(b)
	p.AddImage(a)
	p.AddImage(a) // same content, same key

	if !p.HasAttachments() {
		t.Fatal("post with images should report attachments")
	}
	ids := p.ImageIDs()
	if len(ids) != 2 {
		t.Fatalf("ImageIDs() returned %d ids, want 2", len(ids))
	}
	if ids[0] > ids[1] {
		t.Errorf("ImageIDs() not sorted: %v", ids)
	}
}

func TestUser_Same(t *testing.T) {
	a := User{ID: "1", ScreenName: "alice"}
	b := User{ID: "2", ScreenName: "alice", Name: "Alice"}
	c := User{ID: "1", ScreenName: "bob"}

	if !a.Same(b) {
		t.Errorf("users with the same screen name should be the same entity")
	}
	if a.Same(c) {
		t.Errorf("users with different screen names should differ")
	}
}
