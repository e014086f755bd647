// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the embedding and generation services, the
// vector store, the document source, and configuration storage.
package driven
