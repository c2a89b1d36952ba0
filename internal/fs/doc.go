// Package fs abstracts the local file operations used by the local blob
// store, so that tests can inject write, sync, close and rename failures.
//
//   - [LocalFS] is the production implementation over package os.
//   - [FaultyFS] wraps another FileSystem and fails matching files.
//
// Operations take no context.Context; local file calls are not
// interruptible at the syscall level.
package fs
