// Package qdrant provides a storage.VectorIndex backed by a Qdrant server.
//
// Each chunk becomes one point whose UUID is derived from the collection
// name and chunk ID, so repeated ingestion overwrites rather than duplicates.
// The chunk text, chapter label, source position, and embedding fingerprint
// travel in the point payload.
package qdrant
