// Package sqlite implements the vector store on a local SQLite database.
// Embeddings are stored as little-endian float32 blobs alongside chunk text
// and metadata; similarity queries are a linear cosine scan, which is ample
// for collections in the tens of thousands of chunks.
package sqlite
