// Package manifest persists index snapshot manifests.
//
// A snapshot with id N consists of
//
//	vNNNNNN/heads.bin            head index
//	vNNNNNN/posting-HHHHHHHH.bin one blob per posting list
//	MANIFEST-NNNNNN.bin          this manifest
//	CURRENT                      name of the active manifest
//
// The manifest records dimension, metric, head index variant, id counters,
// the encoded parameter store, and the path, size and CRC32 of every blob.
//
// # Binary Format
//
//	Header (16 bytes):
//	  Magic    (4 bytes) - 0x4D525053 ("SPRM")
//	  Version  (4 bytes) - Format version (currently 1)
//	  Checksum (4 bytes) - CRC32-IEEE of payload
//	  Length   (4 bytes) - Payload length in bytes
//
// See WriteBinary for the payload layout.
//
// # Atomic Protocol
//
//  1. Write all snapshot blobs under vNNNNNN/
//  2. Write MANIFEST-NNNNNN.bin
//  3. Point CURRENT at the new manifest
//
// CURRENT is replaced atomically (rename on local disks, single PUT on
// object stores), so a reader sees either the old or the new snapshot.
// Prune removes everything the current snapshot does not reference.
package manifest
