package vmm

import (
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/mm/page"
)

// CowManager maps VPN -> shared Page for pages whose PTEs were marked
// read-only+COW after a fork (spec.md §3/§4.6). Grounded on
// original_source's CowManager (cow.rs): a BTreeMap there, a plain Go map
// here guarded by a lock since this model is concurrent across goroutines
// standing in for harts, where the original relies on a single-threaded
// SyncUnsafeCell.
type CowManager struct {
	lock  ksync.IRQLock // touched by the simulated COW fault handler
	pages map[uintptr]*page.Page
}

// NewCowManager returns an empty CowManager.
func NewCowManager() *CowManager {
	return &CowManager{pages: make(map[uintptr]*page.Page)}
}

// Put registers vpn as sharing pg, incrementing pg's COW reference count.
func (c *CowManager) Put(vpn uintptr, pg *page.Page) {
	c.lock.Acquire()
	defer c.lock.Release()
	c.pages[vpn] = pg
	pg.IncRefCOW()
}

// IsInCOW reports whether vpn is a page currently tracked as shared
// (spec.md's is_in_cow).
func (c *CowManager) IsInCOW(vpn uintptr) bool {
	c.lock.Acquire()
	defer c.lock.Release()
	_, ok := c.pages[vpn]
	return ok
}

// Take removes and returns the page shared at vpn, if any. The COW fault
// handler is the only caller; it owns decrementing the share count once it
// has installed the replacement page.
func (c *CowManager) Take(vpn uintptr) (*page.Page, bool) {
	c.lock.Acquire()
	defer c.lock.Release()
	pg, ok := c.pages[vpn]
	if ok {
		delete(c.pages, vpn)
	}
	return pg, ok
}

// Clear empties the manager, dropping its references to every shared page
// without freeing them (the address space's own teardown path owns that) —
// matches original_source's clear(), used when exec() replaces the address
// space's user mappings wholesale.
func (c *CowManager) Clear() {
	c.lock.Acquire()
	defer c.lock.Release()
	c.pages = make(map[uintptr]*page.Page)
}

// CloneFrom shares every VPN tracked by other into c, incrementing each
// page's COW reference count again (both sides of a fork now share it).
// Matches original_source's from_other_cow, minus the PTE-flag assertions
// (the fault dispatcher and AddressSpace.ForkCOW already establish them).
func (c *CowManager) CloneFrom(other *CowManager) {
	other.lock.Acquire()
	snapshot := make(map[uintptr]*page.Page, len(other.pages))
	for vpn, pg := range other.pages {
		snapshot[vpn] = pg
	}
	other.lock.Release()

	c.lock.Acquire()
	defer c.lock.Release()
	for vpn, pg := range snapshot {
		c.pages[vpn] = pg
		pg.IncRefCOW()
	}
}
