// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cla

import "sync"

// merge merges two RecBundle channels into a new one.
func merge(a, b <-chan RecBundle) (ch chan RecBundle) {
	var wg sync.WaitGroup
	wg.Add(2)

	ch = make(chan RecBundle)

	for _, c := range []<-chan RecBundle{a, b} {
		go func(c <-chan RecBundle) {
			for rb := range c {
				ch <- rb
			}

			wg.Done()
		}(c)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	return
}

// JoinReceivers joins the Bundles() output of several ConvergenceReceivers
// into a single channel, receiving from all of them.
func JoinReceivers(chans ...chan RecBundle) chan RecBundle {
	switch len(chans) {
	case 0:
		ch := make(chan RecBundle)
		close(ch)
		return ch

	case 1:
		return chans[0]

	default:
		pivot := len(chans) / 2

		left := JoinReceivers(chans[pivot:]...)
		right := JoinReceivers(chans[:pivot]...)

		return merge(left, right)
	}
}
