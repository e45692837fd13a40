package storage

import "github.com/pkg/errors"

// ErrNotFound is returned by Backend.Get (and anything built on it) when a
// key does not exist. Per spec §4.1, a NotFound on a key expected to exist
// during block application is corruption, not a normal miss; callers that
// hit ErrNotFound mid-apply should wrap it as a fatal apply error rather
// than propagate it as a routine "missing" signal.
var ErrNotFound = errors.New("key not found")

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("storage backend is closed")
