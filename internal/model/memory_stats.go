package model

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"RefineAPI/internal/logger"
)

func readAllocBytes() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

func countRefiners(resources map[string]*Resource) (filters, sorts, searches int) {
	for _, res := range resources {
		filters += len(res.Filters)
		sorts += len(res.Sorts)
		searches += len(res.Searches)
	}
	return filters, sorts, searches
}

// logRegistryStats reports what a freshly loaded registry holds and how much
// heap the process uses relative to its memory limit.
func logRegistryStats(resources map[string]*Resource) {
	filters, sorts, searches := countRefiners(resources)
	alloc := readAllocBytes()
	limit, source := detectMemoryLimit()

	fields := map[string]any{
		"resources":  len(resources),
		"filters":    filters,
		"sorts":      sorts,
		"searches":   searches,
		"heap_alloc": formatBytes(alloc),
	}
	if limit > 0 {
		fields["memory_limit"] = formatBytes(limit)
		fields["memory_limit_source"] = source
	}
	logger.Info("registry_ready", fields)
}

func logOptionsCacheMemory() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	logger.Error("options_cache_memory_pressure", map[string]any{
		"heap_alloc": formatBytes(stats.HeapAlloc),
		"heap_inuse": formatBytes(stats.HeapInuse),
	})
}

// detectMemoryLimit reads the cgroup limit, falling back to MemTotal.
func detectMemoryLimit() (uint64, string) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		if v, ok := parseLimitValue(string(data)); ok {
			return v, "cgroup v2 memory.max"
		}
	}
	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		if v, ok := parseLimitValue(string(data)); ok {
			return v, "cgroup v1 memory.limit_in_bytes"
		}
	}
	if data, err := os.ReadFile("/proc/meminfo"); err == nil {
		for _, ln := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(ln, "MemTotal:") {
				continue
			}
			if fields := strings.Fields(ln); len(fields) >= 2 {
				if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
					return kb * 1024, "proc meminfo MemTotal"
				}
			}
		}
	}
	return 0, "unknown"
}

func parseLimitValue(raw string) (uint64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "max" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatBytes(v uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case v >= gb:
		return strconv.FormatFloat(float64(v)/float64(gb), 'f', 2, 64) + " GB"
	case v >= mb:
		return strconv.FormatFloat(float64(v)/float64(mb), 'f', 2, 64) + " MB"
	case v >= kb:
		return strconv.FormatFloat(float64(v)/float64(kb), 'f', 2, 64) + " KB"
	default:
		return strconv.FormatUint(v, 10) + " B"
	}
}
