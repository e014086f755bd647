// Package domain contains the core business entities and rules for knowhub.
// It has no dependencies on infrastructure - all types here are pure data
// structures and business logic shared across the ingestion and query paths.
package domain
