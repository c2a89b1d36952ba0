// Package s3 stores index snapshots in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "indexes/reviews"
//	    o.Region = "eu-central-1"
//	})
//
//	err = idx.SaveTo(ctx, store)
//
// Blobs below the multipart part size are written with one PutObject
// carrying a CRC32C checksum; larger blobs use the SDK upload manager.
// Reads are ranged GETs.
package s3
