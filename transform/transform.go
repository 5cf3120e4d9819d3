// Package transform defines the payload transformations a worker applies
// between the inbound and return legs.
package transform

import (
	"fmt"
	"sort"
	"strings"
)

// Transform maps a reassembled payload to the payload sent back.
// Apply must not modify its input.
type Transform interface {
	Name() string
	Apply(data []byte) ([]byte, error)
}

type identity struct{}

// Identity returns data unchanged.
func Identity() Transform { return identity{} }

func (identity) Name() string                      { return "identity" }
func (identity) Apply(data []byte) ([]byte, error) { return data, nil }

type invert struct{}

// Invert flips every bit into a fresh buffer.
func Invert() Transform { return invert{} }

func (invert) Name() string { return "invert" }

func (invert) Apply(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = ^b
	}
	return out, nil
}

type chain []Transform

// Chain applies transforms left to right. An empty chain is Identity.
func Chain(ts ...Transform) Transform {
	if len(ts) == 0 {
		return Identity()
	}
	if len(ts) == 1 {
		return ts[0]
	}
	c := make(chain, len(ts))
	copy(c, ts)
	return c
}

func (c chain) Name() string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return strings.Join(names, ",")
}

func (c chain) Apply(data []byte) ([]byte, error) {
	var err error
	current := data
	for i, t := range c {
		current, err = t.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("transform %d (%s): %w", i, t.Name(), err)
		}
	}
	return current, nil
}

var registry = map[string]func() (Transform, error){
	"identity": func() (Transform, error) { return Identity(), nil },
	"invert":   func() (Transform, error) { return Invert(), nil },
	"zstd":     func() (Transform, error) { return NewZstdCompress() },
	"unzstd":   func() (Transform, error) { return NewZstdDecompress() },
}

// Names returns the registered transform names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a transform by name. A comma-separated list builds a Chain;
// empty selects Identity.
func Lookup(name string) (Transform, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity(), nil
	}

	var ts []Transform
	for _, part := range strings.Split(name, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		ctor, ok := registry[part]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q (available: %s)", part, strings.Join(Names(), ", "))
		}
		t, err := ctor()
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", part, err)
		}
		ts = append(ts, t)
	}
	return Chain(ts...), nil
}
