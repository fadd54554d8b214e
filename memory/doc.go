// Package memory provides the long-term memory core of the Athisis chat
// client: a local store that embeds, scores, deduplicates, expires, and
// retrieves conversational facts to augment prompts sent to the model backend.
//
// Memories are free-text facts with a vector embedding. A candidate is only
// persisted when its admission score clears a fixed threshold, near-duplicates
// are folded into the existing entry instead of stored twice, and every memory
// carries a type-dependent time-to-live after which it is lazily evicted.
// Retrieval ranks live memories by a blend of cosine similarity and recency,
// and reinforces (raises the confidence of) whatever it returns.
//
// Architecture:
//   - Store: owns the collection; admission, dedup merge, expiry sweep, persistence
//   - Retriever: blended similarity+recency ranking with reinforcement
//   - Embedder: text-to-vector conversion (Ollama for the app, mock for tests)
//   - Persister: durable snapshot of the full collection (JSON file adapter)
//
// Similarity search runs on an embedded chromem-go collection that mirrors the
// live set; the canonical collection is owned exclusively by the Store and
// callers only ever receive copies.
//
// The store is consumed in-process; it defines no wire protocol of its own.
package memory
