// Package rng provides the two random sources the games draw from: a
// replayable stream fully determined by (seed, counter), and a secure
// one-shot draw for values the player must not be able to front-run.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"sync"
)

// Stream is a deterministic pseudo-random source. The same seed and counter
// always produce the same value, so a session replayed under a fixed seed
// repeats exactly. It is not cryptographically secure.
type Stream struct {
	mu      sync.Mutex
	seed    string
	counter uint64
}

func NewStream(seed string) *Stream {
	if seed == "" {
		seed = NewSeed()
	}
	return &Stream{seed: seed}
}

// Draw returns the next value in [0,1) and advances the counter.
func (s *Stream) Draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := valueAt(s.seed, s.counter)
	s.counter++
	return v
}

// Reseed replaces the seed and resets the counter, making subsequent draws
// independent of any prior sequence.
func (s *Stream) Reseed(seed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	s.counter = 0
}

func (s *Stream) Seed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

func (s *Stream) Counter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// valueAt hashes seed+counter with a 32-bit polynomial rolling hash and
// normalizes the magnitude into [0,1).
func valueAt(seed string, counter uint64) float64 {
	input := seed + strconv.FormatUint(counter, 10)

	var hash int32
	for _, c := range input {
		hash = hash<<5 - hash + int32(c)
	}

	return normalize(hash)
}

// normalize folds the hash magnitude into [0,1). The int32 minimum has no
// positive counterpart, so its magnitude is clamped before dividing.
func normalize(hash int32) float64 {
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	if h > math.MaxInt32 {
		h = math.MaxInt32
	}
	return float64(h) / float64(math.MaxInt32+1)
}

// SecureDraw returns a uniform value in [0,1) from the operating system's
// CSPRNG. It cannot be replayed and is independent of every Stream.
func SecureDraw() float64 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// The system CSPRNG failing is unrecoverable; rand.Read documents
		// that it never fails on supported platforms.
		panic(err)
	}
	return float64(binary.BigEndian.Uint32(b[:])) / float64(1<<32)
}

// NewSeed generates a fresh random seed string.
func NewSeed() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
