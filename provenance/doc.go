// Package provenance assigns provenance ids to posts and images.
//
// A Registrar turns a post or image into a registry URI, registers it with
// the configured age-off rules and reports failures as *RegistrationError.
// Each URI is registered at most once per run. RetryingRegistry wraps a
// storage.Registry so that transport failures are retried with exponential
// backoff while every other registry error is returned immediately.
package provenance
