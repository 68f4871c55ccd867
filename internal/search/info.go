package search

// recentActivityLimit bounds the rolling window of recently touched package
// names reported by IndexInfo.
const recentActivityLimit = 20

// touchLocked records index activity for the status surface. Removals are
// recorded with a leading "-". Caller holds the write lock.
func (x *InMemoryIndex) touchLocked(entry string) {
	x.recentlyTouched = append(x.recentlyTouched, entry)
	if n := len(x.recentlyTouched); n > recentActivityLimit {
		x.recentlyTouched = x.recentlyTouched[n-recentActivityLimit:]
	}
}

// IndexInfo returns a point-in-time snapshot of engine state for health and
// status endpoints. The returned slice is a copy.
func (x *InMemoryIndex) IndexInfo() IndexInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	touched := make([]string, len(x.recentlyTouched))
	copy(touched, x.recentlyTouched)
	return IndexInfo{
		IsReady:         x.ready.Load(),
		PackageCount:    len(x.packages),
		LastUpdated:     x.lastUpdated,
		RecentlyTouched: touched,
	}
}
