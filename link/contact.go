// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package link

import "sync"

// Contact is the active session object bound to a Link during a connection
// attempt. It is reference-counted because convergence-layer
// I/O goroutines may outlive the Link's own association with it by a small
// window (e.g. a final ack flush after the Link has already moved to
// CLOSING).
type Contact struct {
	mutex sync.Mutex

	link *Link
	refs int
	broken chan struct{}
	brokenO sync.Once
}

func newContact(l *Link) *Contact {
	return &Contact{
		link: l,
		refs: 1,
		broken: make(chan struct{}),
	}
}

// Link returns the Contact's owning Link.
func (c *Contact) Link() *Link {
	return c.link
}

// Acquire increments the Contact's reference count. Call for every
// goroutine that holds onto the Contact beyond the call that obtained it.
func (c *Contact) Acquire() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.refs++
}

// release drops one reference, held by the Link itself.
func (c *Contact) release() {
	c.Release()
}

// Release drops one reference taken by Acquire.
func (c *Contact) Release() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.refs--
}

// RefCount returns the current reference count.
func (c *Contact) RefCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.refs
}

// MarkBroken signals a transport failure to anyone watching Broken. Safe
// to call more than once.
func (c *Contact) MarkBroken() {
	c.brokenO.Do(func() { close(c.broken) })
}

// Broken is closed once MarkBroken has been called.
func (c *Contact) Broken() <-chan struct{} {
	return c.broken
}
