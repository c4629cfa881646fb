// Package image converts flat machine-code images to 32-bit words and loads
// them into target memory.
//
// A flat image is headerless little-endian bytes implicitly based at its
// link origin. Words are written with one poke each, strictly in ascending
// address order: code that a caller deliberately executes while a later
// part of it is still being written observes a prefix of the image, never
// a scattered mix. There is no rollback; a failed poke leaves the words
// before it in place.
package image

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/muurk/coastermelt/internal/target"
)

// WordSize is the load granularity in bytes.
const WordSize = 4

// DecodeError reports a flat image whose length is not a whole number of
// words.
type DecodeError struct {
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("flat image length %d is not a multiple of %d bytes", e.Length, WordSize)
}

// WriteError reports a poke that failed part-way through loading.
type WriteError struct {
	// Address is the address of the word that failed
	Address uint32
	// Index is the word index that failed; words [0, Index) were written
	Index int
	// Underlying error from the target
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("poke 0x%08x (word %d) failed, %d words already written: %v",
		e.Address, e.Index, e.Index, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Decode reinterprets data as little-endian words. It never pads or
// truncates.
func Decode(data []byte) ([]uint32, error) {
	if len(data)%WordSize != 0 {
		return nil, &DecodeError{Length: len(data)}
	}

	words := make([]uint32, len(data)/WordSize)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*WordSize:])
	}
	return words, nil
}

// Encode is the inverse of Decode.
func Encode(words []uint32) []byte {
	data := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*WordSize:], w)
	}
	return data
}

// Observer is told after each successful poke how many of total words are
// now in place.
type Observer func(address uint32, written, total int)

// Write pokes words[i] at address+4*i for ascending i and stops at the
// first failure.
func Write(ctx context.Context, t target.Target, address uint32, words []uint32) error {
	return WriteObserved(ctx, t, address, words, nil)
}

// WriteObserved is Write with obs called after every word. A nil obs is
// allowed.
func WriteObserved(ctx context.Context, t target.Target, address uint32, words []uint32, obs Observer) error {
	for i, w := range words {
		addr := address + uint32(WordSize*i)
		if err := t.Poke(ctx, addr, w); err != nil {
			return &WriteError{Address: addr, Index: i, Err: err}
		}
		if obs != nil {
			obs(address, i+1, len(words))
		}
	}
	return nil
}
