/*
Package rtstore implements the realtime store.

This file contains the change-subscription machinery: path-scoped listeners
that receive a full snapshot of their path on every relevant mutation, the
same way the web client's value listeners behaved against the hosted store.
*/
package rtstore

import (
	"encoding/json"
	"strings"

	"bizhub/internal/pkg/logx"
)

// Event is a snapshot notification for a subscribed path.
type Event struct {
	// Path is the subscribed path the snapshot was taken at.
	Path string

	// Value is the assembled JSON value at the path. Nil when Exists is false.
	Value json.RawMessage

	// Exists is false when the path (or its whole subtree) is gone; a room
	// subscriber seeing Exists=false must treat the room as deleted.
	Exists bool
}

// subscriptionBuffer bounds the per-subscriber event queue. Snapshots are
// self-contained, so on overflow the oldest snapshot is dropped in favor of
// the newest one.
const subscriptionBuffer = 64

type subscription struct {
	id     int64
	path   string
	events chan Event
}

// Subscribe registers a listener for path and returns its event channel plus a
// cancel function. The current snapshot is delivered immediately; afterwards
// every mutation touching the path or its subtree delivers a fresh snapshot,
// in write order. The channel is closed on cancel and on store close.
func (s *Store) Subscribe(path string) (<-chan Event, func(), error) {
	path, err := normalizePath(path)
	if err != nil {
		return nil, nil, err
	}

	sub := &subscription{
		path:   path,
		events: make(chan Event, subscriptionBuffer),
	}

	// Taking writeMu keeps the initial snapshot ordered against concurrent writers.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.subMu.Lock()
	s.nextSubID++
	sub.id = s.nextSubID
	s.subs[sub.id] = sub
	s.subMu.Unlock()

	raw, exists, err := s.Read(path)
	if err != nil {
		s.removeSubscription(sub.id)
		return nil, nil, err
	}
	sub.push(Event{Path: path, Value: raw, Exists: exists})

	cancel := func() {
		s.removeSubscription(sub.id)
	}

	return sub.events, cancel, nil
}

func (s *Store) removeSubscription(id int64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if sub, ok := s.subs[id]; ok {
		close(sub.events)
		delete(s.subs, id)
	}
}

// notify delivers fresh snapshots to every subscription affected by the
// changed paths. Called with writeMu held, immediately after commit.
func (s *Store) notify(changed []string) {
	if len(changed) == 0 {
		return
	}

	// Pushing under the read lock keeps sends ordered against channel close
	// in removeSubscription.
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subs {
		related := false
		for _, path := range changed {
			if pathsRelated(sub.path, path) {
				related = true
				break
			}
		}
		if !related {
			continue
		}

		raw, exists, err := s.Read(sub.path)
		if err != nil {
			logx.Error(err, "Failed to build subscription snapshot", "path", sub.path)
			continue
		}
		sub.push(Event{Path: sub.path, Value: raw, Exists: exists})
	}
}

// push queues the event without blocking the writer; when the subscriber is
// too slow the oldest snapshot is discarded, keeping the newest state.
func (sub *subscription) push(event Event) {
	for {
		select {
		case sub.events <- event:
			return
		default:
		}

		select {
		case <-sub.events:
			logx.Warn("Subscriber event queue full, dropping oldest snapshot", "path", sub.path)
		default:
		}
	}
}

// pathsRelated reports whether a change at changed affects a subscription at
// subPath: equal paths, the change below the subscription, or the change at an
// ancestor (a subtree replace or delete above the subscription).
func pathsRelated(subPath, changed string) bool {
	if subPath == changed {
		return true
	}
	if strings.HasPrefix(changed, subPath+"/") {
		return true
	}
	return strings.HasPrefix(subPath, changed+"/")
}
