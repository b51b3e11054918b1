// Package tagstore implements the symbolic tag table: named tags with
// volatile DINT values refreshed on every successful read (spec §3 "Tag",
// §4.8 "Tag Read").
package tagstore

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// DINTTypeCode is the CIP type code for a 32-bit signed integer.
const DINTTypeCode uint16 = 0x00C4

const (
	minTagValue = -1_000_000
	maxTagValue = 1_000_000
)

// Tag is one named, volatile DINT tag.
type Tag struct {
	mu                sync.Mutex
	Name              string
	PositionalAddress string
	value             int32
	lastReadAt        time.Time
}

// Value returns the tag's current value without refreshing it.
func (t *Tag) Value() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// LastReadAt returns the timestamp of the most recent read.
func (t *Tag) LastReadAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReadAt
}

// refresh atomically replaces the tag's value with a fresh pseudo-random
// i32 and returns it; the reply's value and the stored value are
// guaranteed to match (spec §5 "A tag read refresh MUST appear atomic").
func (t *Tag) refresh(rng *rand.Rand, mu *sync.Mutex, now time.Time) int32 {
	mu.Lock()
	v := int32(minTagValue + rng.Intn(maxTagValue-minTagValue+1))
	mu.Unlock()

	t.mu.Lock()
	t.value = v
	t.lastReadAt = now
	t.mu.Unlock()
	return v
}

// Store holds the immutable-membership set of tags created at startup
// (spec §3: "The set of tags is constructed once at startup ... its
// membership is otherwise immutable").
type Store struct {
	tags    []*Tag
	byName  map[string]*Tag
	byAddr  map[string]*Tag
	rngMu   sync.Mutex
	rng     *rand.Rand
}

// NewStore builds count tags named "Sensor<N>A" with positional addresses
// "Tag_<N>" (1-based), seeded from seed for reproducible test fixtures.
func NewStore(count int, seed int64) *Store {
	s := &Store{
		byName: make(map[string]*Tag, count),
		byAddr: make(map[string]*Tag, count),
		rng:    rand.New(rand.NewSource(seed)),
	}
	for i := 1; i <= count; i++ {
		tag := &Tag{
			Name:              fmt.Sprintf("Sensor%dA", i),
			PositionalAddress: fmt.Sprintf("Tag_%d", i),
		}
		s.tags = append(s.tags, tag)
		s.byName[tag.Name] = tag
		s.byAddr[tag.PositionalAddress] = tag
	}
	return s
}

// Len returns the number of tags in the store.
func (s *Store) Len() int {
	return len(s.tags)
}

// All returns the tags in creation order, for diagnostic listing.
func (s *Store) All() []*Tag {
	return s.tags
}

// Resolve implements the three-step lookup from spec §4.8: by symbolic
// name, then by positional address, then by a trailing decimal index.
func (s *Store) Resolve(name string) (*Tag, bool) {
	if name == "" {
		return nil, false
	}
	if tag, ok := s.byName[name]; ok {
		return tag, true
	}
	if tag, ok := s.byAddr[name]; ok {
		return tag, true
	}
	if idx, ok := trailingIndex(name); ok {
		if idx >= 1 && idx <= len(s.tags) {
			return s.tags[idx-1], true
		}
	}
	return nil, false
}

// trailingIndex extracts a trailing decimal number from name, e.g. "Tag_7" -> 7.
func trailingIndex(name string) (int, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	digits := name[i:]
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Read performs a refresh-on-read and returns the new value (spec §4.8
// step 4). now is passed in so callers can keep deterministic tests.
func (s *Store) Read(tag *Tag, now time.Time) int32 {
	return tag.refresh(s.rng, &s.rngMu, now)
}
