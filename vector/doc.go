// Package vector provides core.VectorIndex implementations and the indexer
// that embeds catalog products into them.
//
// Backends live in subpackages: inmem (exact cosine search in process),
// qdrant and pgvector. Each backend also implements Writer so the same
// indexer can load any of them.
package vector
