// Package sentinel holds the store-layer sentinel errors. Adapters return
// these (optionally wrapped) for factual resource states; services translate
// them into coded domain errors at the boundary. Validation failures never
// use sentinels.
package sentinel

import "errors"

var (
	// ErrNotFound reports that the record does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrExpired reports that the record's TTL has passed (sessions,
	// pending verification codes).
	ErrExpired = errors.New("expired")
)
