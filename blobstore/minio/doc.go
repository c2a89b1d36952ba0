// Package minio stores index snapshots in MinIO or any other
// S3-compatible object store reachable through minio-go.
//
//	store, err := minio.New(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "indexes",
//	    Prefix:    "reviews",
//	    CreateBucket: true,
//	})
//
// Blobs are written with a single PutObject; reads are ranged GETs.
package minio
