// Package abtest compares two prompt templates on cohorts of the same
// test data.
package abtest

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
)

// Group is the cohort an identifier is assigned to.
type Group string

const (
	GroupA Group = "A"
	GroupB Group = "B"
)

// ErrInvalidSplit is returned for a split percentage outside [0,100].
var ErrInvalidSplit = errors.New("split percentage must be between 0 and 100")

// Splitter assigns identifiers to cohorts by hashing them. Assignment is
// a pure function of the identifier and the split percentage.
type Splitter struct {
	split int
	seed  int64
}

// NewSplitter creates a splitter sending roughly (split+1)/101 of
// identifiers to cohort A. The seed is recorded but does not affect
// bucketing.
func NewSplitter(split int, seed int64) (*Splitter, error) {
	if split < 0 || split > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSplit, split)
	}
	return &Splitter{split: split, seed: seed}, nil
}

// Split returns the percentage of traffic assigned to cohort A.
func (s *Splitter) Split() int { return s.split }

// Seed returns the seed the splitter was created with.
func (s *Splitter) Seed() int64 { return s.seed }

// Bucket maps identifier to [0,100]: the first four bytes of its MD5
// digest read big-endian, modulo 101.
func Bucket(identifier string) int {
	sum := md5.Sum([]byte(identifier))
	return int(binary.BigEndian.Uint32(sum[:4]) % 101)
}

// AssignGroup returns GroupA when the identifier's bucket is at most the
// split percentage.
func (s *Splitter) AssignGroup(identifier string) Group {
	if Bucket(identifier) <= s.split {
		return GroupA
	}
	return GroupB
}
