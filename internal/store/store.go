// Package store is the key-value persistence layer. Everything durable — the
// account roster, the active session pointer, the bet log, the RNG seed, game
// settings and limits — is a JSON value under a fixed key.
package store

import "errors"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
