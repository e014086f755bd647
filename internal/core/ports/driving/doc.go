// Package driving provides interfaces for user-facing adapters
// (primary/inbound ports). The CLI drives the application through these.
package driving
