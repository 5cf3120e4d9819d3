// Package chunk splits payloads into bounded fragments and reassembles them.
//
// Split and Concat are exact inverses for any chunk size > 0:
//
//	Concat(Split(p, k)) == p
//
// A zero-length payload splits into exactly one empty fragment, so every
// transfer carries at least one frame and a receiver never waits for total=0.
package chunk

import (
	"errors"
	"fmt"
	"io"
)

// ErrInvalidChunkSize is returned when the chunk size is not positive.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ProgressFunc is called once per fragment produced, in order.
// It is observational only and must not retain the fragment.
type ProgressFunc func(index, total int)

// Count returns the number of fragments Split produces for totalBytes.
func Count(totalBytes, chunkSize int) int {
	if chunkSize <= 0 {
		return 0
	}
	if totalBytes == 0 {
		return 1
	}
	return (totalBytes + chunkSize - 1) / chunkSize
}

// Split walks payload in strides of chunkSize and returns the fragments in
// ascending offset order. Fragments alias payload (no copy); their capacity is
// clipped so an append on one fragment cannot overwrite the next.
func Split(payload []byte, chunkSize int, progress ProgressFunc) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}

	total := Count(len(payload), chunkSize)
	fragments := make([][]byte, 0, total)

	if len(payload) == 0 {
		fragments = append(fragments, payload[:0:0])
		if progress != nil {
			progress(0, 1)
		}
		return fragments, nil
	}

	for off := 0; off < len(payload); off += chunkSize {
		end := min(off+chunkSize, len(payload))
		fragments = append(fragments, payload[off:end:end])
		if progress != nil {
			progress(len(fragments)-1, total)
		}
	}
	return fragments, nil
}

// Concat joins fragments in the order given. The caller orders them by index.
// The output length is always the sum of fragment lengths.
func Concat(fragments [][]byte) []byte {
	size := 0
	for _, f := range fragments {
		size += len(f)
	}

	out := make([]byte, size)
	offset := 0
	for _, f := range fragments {
		offset += copy(out[offset:], f)
	}
	return out
}

// Dots returns a ProgressFunc that writes "." per fragment and "*" after the last.
// Write errors are ignored.
func Dots(w io.Writer) ProgressFunc {
	return func(index, total int) {
		_, _ = io.WriteString(w, ".")
		if index == total-1 {
			_, _ = io.WriteString(w, "*")
		}
	}
}
