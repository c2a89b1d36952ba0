// Package mmap maps snapshot blobs read-only into memory.
//
// A Mapping hands out the file contents without copying them through a
// read buffer. Snapshot loading reads every blob front to back exactly once,
// so Open advises the kernel of sequential access.
//
// On platforms without mmap support the file is read into the heap instead;
// the API is the same.
//
// Bytes must not be used after Close.
package mmap
