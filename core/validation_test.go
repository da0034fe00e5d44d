package core

import (
	"errors"
	"testing"
)

func TestValidatePost(t *testing.T) {
	alice := User{ID: "u1", ScreenName: "alice"}
	bob := User{ID: "u2", ScreenName: "bob"}

	tests := []struct {
		name    string
		post    *Post
		wantErr error
	}{
		{
			name:    "valid post",
			post:    &Post{ID: "1", Author: alice, Mentions: []User{bob}},
			wantErr: nil,
		},
		{
			name:    "valid reply",
			post:    &Post{ID: "1", Author: alice, RepliedTo: &Reference{PostID: "0", User: bob}},
			wantErr: nil,
		},
		{
			name:    "valid with unassigned provenance id",
			post:    &Post{ID: "1", Author: alice, ProvenanceID: 0},
			wantErr: nil,
		},
		{
			name:    "nil post",
			post:    nil,
			wantErr: ErrInvalidPost,
		},
		{
			name:    "empty id",
			post:    &Post{Author: alice},
			wantErr: ErrEmptyPostID,
		},
		{
			name:    "author without screen name",
			post:    &Post{ID: "1", Author: User{ID: "u1"}},
			wantErr: ErrEmptyScreenName,
		},
		{
			name:    "mention without screen name",
			post:    &Post{ID: "1", Author: alice, Mentions: []User{{ID: "u3"}}},
			wantErr: ErrEmptyScreenName,
		},
		{
			name: "reply and retweet",
			post: &Post{
				ID:        "1",
				Author:    alice,
				RepliedTo: &Reference{PostID: "0", User: bob},
				Retweeted: &Reference{PostID: "2", User: bob},
			},
			wantErr: ErrConflictingReferences,
		},
		{
			name:    "reference without post id",
			post:    &Post{ID: "1", Author: alice, Retweeted: &Reference{User: bob}},
			wantErr: ErrEmptyPostID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePost(tt.post)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePost() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePost() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidPost) {
				t.Errorf("ValidatePost() error = %v, should wrap ErrInvalidPost", err)
			}
		})
	}
}

func TestMalformedRecordError(t *testing.T) {
	err := error(Missing("id_str"))

	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("Missing() should match ErrMalformedRecord")
	}

	var mre *MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("errors.As failed for %v", err)
	}
	if mre.Field != "id_str" {
		t.Errorf("Field = %q, want id_str", mre.Field)
	}
}
