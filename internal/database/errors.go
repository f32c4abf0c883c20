package database

import "errors"

var (
	// ErrSourceNotFound is returned when a source id does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrBindingNotFound is returned when a binding id does not exist.
	ErrBindingNotFound = errors.New("binding not found")
	// ErrRunNotFound is returned when a sync run id does not exist.
	ErrRunNotFound = errors.New("sync run not found")
	// ErrEntryNotFound is returned when a raw crawl entry id does not exist.
	ErrEntryNotFound = errors.New("raw crawl entry not found")
	// ErrEditionNotFound is returned when an edition does not exist.
	ErrEditionNotFound = errors.New("edition not found")
)
