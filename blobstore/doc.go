// Package blobstore abstracts where index snapshots are stored.
//
// A snapshot is a set of immutable blobs (head index, posting lists,
// manifest) plus a small CURRENT pointer that is rewritten last. Every
// backend therefore only needs atomic whole-blob writes, reads, deletes and
// prefix listing.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, atomic temp-file + rename writes, mmap reads
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 (multipart uploads for large blobs)
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
