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

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrSchemaExists indicates a graph schema was already created.
	ErrSchemaExists = errors.New("graph schema already exists")

	// ErrUnknownLabel indicates an edge label the graph schema does not declare.
	ErrUnknownLabel = errors.New("edge label not in schema")

	// ErrDuplicateDocument indicates a URI was already registered.
	ErrDuplicateDocument = errors.New("document already registered")

	// ErrMissingParent indicates a parent URI was never registered.
	ErrMissingParent = errors.New("parent document not registered")

	// ErrCyclicLineage indicates a registration would make a document its own ancestor.
	ErrCyclicLineage = errors.New("cyclic lineage")

	// ErrRuleNotFound indicates an age-off rule unknown to the registry.
	ErrRuleNotFound = errors.New("age-off rule not found")

	// ErrInvalidRegistration indicates a registration request without a URI.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrTransport indicates a collaborator could not be reached.
	ErrTransport = errors.New("transport failure")
)
