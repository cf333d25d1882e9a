package store

import "errors"

var (
	// ErrNotFound is returned when no item carries the requested id.
	ErrNotFound = errors.New("item not found")

	// ErrIDImmutable is returned when an update tries to change an item's id.
	ErrIDImmutable = errors.New("item id cannot be changed")

	// ErrStorageWrite wraps any failure to persist the collection.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrStorageUnreadable is returned by Backend.Load when the artifact is
	// missing or malformed. The store recovers with an empty collection.
	ErrStorageUnreadable = errors.New("storage unreadable")

	// ErrLocked is returned when another process owns the data file.
	ErrLocked = errors.New("data file is locked by another process")
)
