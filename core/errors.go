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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrMalformedRecord indicates a raw record is missing a field or carries an invalid one.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidPost indicates a Post failed validation.
	ErrInvalidPost = errors.New("invalid post")

	// ErrEmptyPostID indicates the post ID is empty.
	ErrEmptyPostID = errors.New("post id cannot be empty")

	// ErrEmptyScreenName indicates a user has no screen name.
	ErrEmptyScreenName = errors.New("screen name cannot be empty")

	// ErrConflictingReferences indicates a post is both a reply and a retweet.
	ErrConflictingReferences = errors.New("post cannot be both a reply and a retweet")

	// ErrUnknownLevel indicates a formal visibility label is not part of the lattice.
	ErrUnknownLevel = errors.New("unknown visibility level")
)

// MalformedRecordError names the field that made a raw record unusable.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrMalformedRecord, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// Missing returns a MalformedRecordError for an absent required field.
func Missing(field string) *MalformedRecordError {
	return &MalformedRecordError{Field: field, Reason: "is missing"}
}

// Invalid returns a MalformedRecordError for a field with the wrong shape.
func Invalid(field, reason string) *MalformedRecordError {
	return &MalformedRecordError{Field: field, Reason: reason}
}
