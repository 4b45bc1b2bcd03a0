package reporting

import "sync"

// Cache holds computed P&L reports keyed by (company, period key). Any
// write to a tenant's ledger evicts all of that tenant's entries — a
// wholesale per-tenant clear rather than per-period bookkeeping.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]map[string]*PnLReport
}

// NewCache creates an empty report cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int64]map[string]*PnLReport)}
}

// Get returns the cached report for (companyID, period) if present.
func (c *Cache) Get(companyID int64, period string) (*PnLReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byPeriod, ok := c.entries[companyID]
	if !ok {
		return nil, false
	}
	r, ok := byPeriod[period]
	return r, ok
}

// Put stores a computed report.
func (c *Cache) Put(companyID int64, period string, report *PnLReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byPeriod, ok := c.entries[companyID]
	if !ok {
		byPeriod = make(map[string]*PnLReport)
		c.entries[companyID] = byPeriod
	}
	byPeriod[period] = report
}

// EvictCompany drops every cached period for the tenant.
func (c *Cache) EvictCompany(companyID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, companyID)
}

// Len counts cached entries across all tenants, exposed for monitoring.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, byPeriod := range c.entries {
		n += len(byPeriod)
	}
	return n
}
