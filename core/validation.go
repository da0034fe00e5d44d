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


package core

import (
	"fmt"
)

// ValidatePost validates a Post according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Author must have a screen name
//   - Every mentioned user and reference target must have a screen name
//   - RepliedTo and Retweeted must not both be set
//
// NOT validated (assigned later in the pipeline):
//   - ProvenanceID (0 until registration)
//   - Images (empty until photos are fetched)
func ValidatePost(post *Post) error {
	if post == nil {
		return fmt.Errorf("%w: post is nil", ErrInvalidPost)
	}

	if post.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrEmptyPostID)
	}

	if err := ValidateUser(post.Author); err != nil {
		return fmt.Errorf("%w: author: %w", ErrInvalidPost, err)
	}

	for i, u := range post.Mentions {
		if err := ValidateUser(u); err != nil {
			return fmt.Errorf("%w: mention %d: %w", ErrInvalidPost, i, err)
		}
	}

	if post.RepliedTo != nil && post.Retweeted != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrConflictingReferences)
	}

	for _, ref := range []*Reference{post.RepliedTo, post.Retweeted} {
		if ref == nil {
			continue
		}
		if ref.PostID == "" {
			return fmt.Errorf("%w: reference: %w", ErrInvalidPost, ErrEmptyPostID)
		}
		if err := ValidateUser(ref.User); err != nil {
			return fmt.Errorf("%w: reference: %w", ErrInvalidPost, err)
		}
	}

	return nil
}

// ValidateUser validates that a user can serve as a graph vertex.
func ValidateUser(u User) error {
	if u.ScreenName == "" {
		return ErrEmptyScreenName
	}
	return nil
}
