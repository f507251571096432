// Package translation implements the HTTP client for the translation
// back-end. Unavailability is reported as a typed error so callers can
// degrade gracefully instead of failing the pipeline.
package translation
