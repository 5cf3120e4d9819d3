package session

import (
	"github.com/pithecene-io/haul/chunk"
	"github.com/pithecene-io/haul/types"
)

// AssembleBatch reassembles a batch-framed transfer.
// The fragment sequence arrives whole, so there is no accumulation state;
// every fragment is still held to maxFragment (<= 0 disables the bound).
func AssembleBatch(frame *types.BatchFrame, maxFragment int) ([]byte, error) {
	if len(frame.Fragments) == 0 {
		return nil, newError(ErrorIndexRange, frame.TransferID, "batch carries no fragments")
	}
	if maxFragment > 0 {
		for i, f := range frame.Fragments {
			if len(f) > maxFragment {
				return nil, NewOversizeError(frame.TransferID, i, len(f), maxFragment)
			}
		}
	}
	return chunk.Concat(frame.Fragments), nil
}
