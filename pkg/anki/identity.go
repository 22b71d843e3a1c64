package anki

import (
	"fmt"
	"strconv"
	"time"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

// IDAllocator hands out vendor ids of one entity kind. Ids never repeat
// within one allocator.
type IDAllocator struct {
	used map[int64]bool
	now  func() time.Time
}

// NewIDAllocator returns an allocator with the given ids already taken.
func NewIDAllocator(reserved ...int64) *IDAllocator {
	a := &IDAllocator{used: make(map[int64]bool), now: time.Now}
	for _, id := range reserved {
		a.used[id] = true
	}
	return a
}

// Reserve claims id. It reports false when id is already taken.
func (a *IDAllocator) Reserve(id int64) bool {
	if a.used[id] {
		return false
	}
	a.used[id] = true
	return true
}

// Allocate claims the first free id at or above candidate. Non-positive
// candidates start from the current time in milliseconds.
func (a *IDAllocator) Allocate(candidate int64) int64 {
	if candidate <= 0 {
		candidate = a.now().UnixMilli()
	}
	for a.used[candidate] {
		candidate++
	}
	a.used[candidate] = true
	return candidate
}

// ParseOriginalID reads the vendor id recorded in ext.
func ParseOriginalID(ext srs.Extensions) (int64, bool) {
	s, ok := ext.OriginalID()
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// candidateID derives a vendor id from a universal id's embedded time, then
// from fallback, and finally returns 0 so the allocator uses the current time.
func candidateID(id srs.ID, fallback time.Time) int64 {
	if ms, ok := srs.IDTimestamp(id); ok && ms > 0 {
		return ms
	}
	if !fallback.IsZero() && fallback.UnixMilli() > 0 {
		return fallback.UnixMilli()
	}
	return 0
}

// timestampCandidate prefers the entity's own timestamp and falls back to
// the time embedded in its id. Reviews use it since a revlog id is the
// review time.
func timestampCandidate(t time.Time, id srs.ID) int64 {
	if !t.IsZero() && t.UnixMilli() > 0 {
		return t.UnixMilli()
	}
	return candidateID(id, time.Time{})
}

// identity is one entity awaiting a vendor id.
type identity struct {
	label     string
	ext       srs.Extensions
	candidate int64
}

// resolveIDs assigns vendor ids to items in two passes: every usable
// recorded id is reserved first, then the remaining items are allocated
// from their candidates. A recorded id that is already taken is reported
// and the item falls through to allocation.
func resolveIDs(alloc *IDAllocator, items []identity, item issues.ItemType, c *issues.Collector) []int64 {
	out := make([]int64, len(items))
	pending := make([]bool, len(items))

	for i, it := range items {
		orig, ok := ParseOriginalID(it.ext)
		if !ok {
			if s, present := it.ext.OriginalID(); present {
				c.Warning(fmt.Sprintf("%s has an unusable original id %q, assigning a new one", it.label, s), issues.Details{ItemType: item})
			}
			pending[i] = true
			continue
		}
		if !alloc.Reserve(orig) {
			c.Warning(fmt.Sprintf("%s has original id %d which is already in use, assigning a new one", it.label, orig), issues.Details{ItemType: item})
			pending[i] = true
			continue
		}
		out[i] = orig
	}

	for i, it := range items {
		if pending[i] {
			out[i] = alloc.Allocate(it.candidate)
		}
	}
	return out
}

func originalIDExt(vendorID int64) srs.Extensions {
	return srs.Extensions{srs.ExtOriginalID: strconv.FormatInt(vendorID, 10)}
}
