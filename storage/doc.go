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


// Package storage defines the collaborator contracts the postflow pipeline
// writes through.
//
// The pipeline itself never persists anything. Every backend it talks to
// sits behind one of the interfaces in this package, so a deployment can
// point each sink at a local implementation or at a remote service without
// changing pipeline code.
//
// # Contracts
//
//   - Registry: assigns provenance ids and records parent/child lineage
//   - DocumentStore: keeps the annotated raw payload of every post
//   - GraphStore: merges per-post relationship graphs
//   - ImageIndex: stores attachments under content-addressed ids
//   - CheckpointStore: remembers how far a dispatcher has read its source
//
// # Credentials
//
// Every call that reaches a backend takes a security.Credential. It is
// fetched once at startup and passed by value; implementations reject an
// empty credential with security.ErrUnauthenticated.
//
// # Implementations
//
// The badger subpackage implements Registry, GraphStore, ImageIndex and
// CheckpointStore on a single embedded BadgerDB. The sqlite subpackage
// implements DocumentStore.
//
//	backend, err := badger.OpenBackend("/var/lib/postflow", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	registry, err := badger.NewRegistry(backend)
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All implementations must be thread-safe. Sinks run concurrently and may
// call the same store from several goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
