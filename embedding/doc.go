// Package embedding provides core.Embedder implementations.
//
// Hash is a deterministic, dependency free embedder for demos and tests:
// texts sharing words land close together under cosine similarity. The
// openai subpackage calls an OpenAI compatible embeddings endpoint.
package embedding
