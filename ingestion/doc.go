// Package ingestion sequences raw records through the pipeline and fans
// each processed post out to the sinks.
//
// A Dispatcher handles one record per tick:
//   - parse the raw record and load its images
//   - classify the post's visibility
//   - register the post and back-annotate its raw payload
//   - deliver the post to every sink concurrently
//
// A record that fails before fan-out is skipped and the index advances.
// Sink failures are logged and counted but never stop the other sinks or
// the dispatcher. Ticks never overlap, and Stop takes effect at the next
// tick boundary.
package ingestion
