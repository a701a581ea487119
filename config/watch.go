// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// LinkWatcher reloads the link table section of a Configuration whenever
// its backing file changes on disk, so a link can be added or removed
// without restarting the daemon.
type LinkWatcher struct {
	path string
	watcher *fsnotify.Watcher
	onChange func([]LinkConf)
	stopSyn chan struct{}
	stopAck chan struct{}
}

// WatchLinks starts watching path for changes, invoking onChange with the
// freshly decoded link table each time the file is written. onChange is
// also invoked once immediately with the current contents.
func WatchLinks(path string, onChange func([]LinkConf)) (*LinkWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	lw := &LinkWatcher{
		path: path,
		watcher: w,
		onChange: onChange,
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	if conf, err := Load(path); err == nil {
		onChange(conf.Link)
	} else {
		log.WithError(err).Warn("config: initial link table load failed")
	}

	go lw.loop()
	return lw, nil
}

func (lw *LinkWatcher) loop() {
	defer close(lw.stopAck)

	// Writers commonly rename-and-replace a config file rather than
	// truncate-and-write, which drops the fsnotify watch on some
	// filesystems; re-adding after every event keeps the watch alive.
	var debounce *time.Timer

	for {
		select {
		case <-lw.stopSyn:
			return

		case evt, ok := <-lw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			_ = lw.watcher.Add(lw.path)

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, lw.reload)

		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config: link watcher error")
		}
	}
}

func (lw *LinkWatcher) reload() {
	conf, err := Load(lw.path)
	if err != nil {
		log.WithError(err).Warn("config: link table reload failed, keeping previous table")
		return
	}
	lw.onChange(conf.Link)
}

// Close stops the watcher.
func (lw *LinkWatcher) Close() {
	close(lw.stopSyn)
	<-lw.stopAck
	lw.watcher.Close()
}
