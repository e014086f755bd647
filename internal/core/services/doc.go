// Package services contains the core application services: the batching
// embedding client and the retrieval-augmented generation engine. Services
// depend only on the port interfaces, never on concrete adapters.
package services
