package perf

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"sync"

	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/internal/domain/mods"
)

// fingerprint hashes every field of the request into a cache key. The
// accuracy contributes its exact bit pattern, not its decimal rendering, and
// mods contribute their normalized form, so representation differences
// ("hd,dt" vs "HDDT") never cause false misses.
func fingerprint(req *model.CalculationRequest) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	writeOptInt := func(v *int) {
		if v == nil {
			_, _ = h.Write([]byte{0})
			return
		}
		_, _ = h.Write([]byte{1})
		writeUint(uint64(*v))
	}

	writeUint(uint64(req.BeatmapID))
	writeUint(uint64(req.Mode))
	writeMods(h, mods.Parse(req.Mods, req.Mode))
	writeUint(math.Float64bits(req.Accuracy))
	writeOptInt(req.MaxCombo)
	writeOptInt(req.Misses)
	writeOptInt(req.PassedObjects)

	if req.LegacyScore == nil {
		_, _ = h.Write([]byte{0})
	} else {
		_, _ = h.Write([]byte{1})
		writeUint(uint64(*req.LegacyScore))
	}

	switch {
	case req.NewFormat == nil:
		_, _ = h.Write([]byte{0})
	case *req.NewFormat:
		_, _ = h.Write([]byte{2})
	default:
		_, _ = h.Write([]byte{1})
	}

	return h.Sum64()
}

// writeMods hashes the normalized mod representation, tagged by variant so
// representations with coinciding renderings stay distinct.
func writeMods(h hash.Hash64, m mods.GameMods) {
	var tag byte
	switch m.(type) {
	case mods.Legacy:
		tag = 0
	case mods.Intermode:
		tag = 1
	case mods.Lazer:
		tag = 2
	}
	_, _ = h.Write([]byte{tag})
	_, _ = h.Write([]byte(m.String()))
}

// resultCache is a bounded fingerprint-to-result map with insertion-order
// eviction, mirroring the beatmap cache policy.
type resultCache struct {
	mu      sync.RWMutex
	entries map[uint64]model.PerformanceResult
	order   []uint64
	bound   int
}

func newResultCache(bound int) *resultCache {
	return &resultCache{
		entries: make(map[uint64]model.PerformanceResult),
		bound:   bound,
	}
}

func (c *resultCache) get(key uint64) (model.PerformanceResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[key]
	return result, ok
}

func (c *resultCache) put(key uint64, result model.PerformanceResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = result

	for len(c.entries) > c.bound && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}
