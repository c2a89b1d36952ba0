// Package posting implements the posting store: append-only, id-ordered
// lists of full vectors, one list per head.
//
// Lists are columnar (ids, flattened vectors, metadata). Appends to one list
// are serialized by a per-list lock; appends to different lists proceed in
// parallel. Readers take a View, a snapshot bounded by the list length at
// the time of the call, and scan it without holding any lock. Entries are
// never moved or rewritten, so a View never observes a partially written
// record and positions remain stable.
//
// Lists are persisted with a block-compressed, CRC-protected codec
// (see EncodeList and DecodeList).
package posting
