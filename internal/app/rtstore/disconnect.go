/*
Package rtstore implements the realtime store.

This file contains the disconnect-triggered cleanup: a dead-man's switch that
removes presence entries when the owning connection is torn down without an
explicit leave, so a crashed or vanished client never leaves a ghost
participant behind.
*/
package rtstore

import (
	"bizhub/internal/pkg/logx"
)

// ArmDisconnectCleanup registers path for deletion when the connection
// identified by ownerToken is torn down. Arming is idempotent per
// (ownerToken, path) pair. A path belongs to at most one connection: arming it
// under a new token strips it from every other token, so the teardown of a
// superseded connection cannot delete state a live connection now owns.
func (s *Store) ArmDisconnectCleanup(ownerToken, path string) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	s.discMu.Lock()
	defer s.discMu.Unlock()

	for token, tokenPaths := range s.armed {
		if token == ownerToken {
			continue
		}
		delete(tokenPaths, path)
		if len(tokenPaths) == 0 {
			delete(s.armed, token)
		}
	}

	paths, ok := s.armed[ownerToken]
	if !ok {
		paths = make(map[string]struct{})
		s.armed[ownerToken] = paths
	}
	paths[path] = struct{}{}

	return nil
}

// DisarmDisconnectCleanup cancels a previously armed cleanup, used when the
// client leaves explicitly and the presence entry is removed synchronously.
func (s *Store) DisarmDisconnectCleanup(ownerToken, path string) {
	path, err := normalizePath(path)
	if err != nil {
		return
	}

	s.discMu.Lock()
	defer s.discMu.Unlock()

	if paths, ok := s.armed[ownerToken]; ok {
		delete(paths, path)
		if len(paths) == 0 {
			delete(s.armed, ownerToken)
		}
	}
}

// FireDisconnect deletes every path armed by ownerToken. The transport layer
// calls this when it detects connection teardown; the client is not involved.
func (s *Store) FireDisconnect(ownerToken string) {
	s.discMu.Lock()
	paths := s.armed[ownerToken]
	delete(s.armed, ownerToken)
	s.discMu.Unlock()

	if len(paths) == 0 {
		return
	}

	err := s.RunUpdate(func(tx *Tx) error {
		for path := range paths {
			if err := tx.Delete(path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logx.Error(err, "Disconnect cleanup failed", "owner_token", ownerToken)
	}
}
