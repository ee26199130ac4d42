// Package state holds a user's per-branch cursor bookkeeping: the
// latest-link a new message on a branch will chain from, and the last
// sequence number processed for every (topic, identifier) pair known to
// this user.
package state

import (
	"sync"

	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/message"
)

// CursorEntry is one row of a BranchStore.Cursors() snapshot.
type CursorEntry struct {
	Topic message.Topic
	Permission id.Permission
	Cursor uint64
}

type branchEntry struct {
	latestLink message.MsgID
	hasLink bool
	cursors map[id.Permission]uint64
}

// BranchStore is a flat map<Topic, (latest_link, map<Permission<Identifier>, cursor>)>,
// keyed entirely by value types so no reference cycles between branches
// and cursors can form.
type BranchStore struct {
	mu sync.RWMutex
	branches map[message.Topic]*branchEntry
}

// NewBranchStore returns an empty store.
func NewBranchStore() *BranchStore {
	return &BranchStore{branches: make(map[message.Topic]*branchEntry)}
}

// NewBranch creates an empty per-topic entry, returning false if one
// already existed (idempotent either way).
func (s *BranchStore) NewBranch(topic message.Topic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.branches[topic]; exists {
		return false
	}
	s.branches[topic] = &branchEntry{cursors: make(map[id.Permission]uint64)}
	return true
}

// SetLatestLink records msgID as the link a new message on topic will
// chain from, creating the branch entry if it does not yet exist.
func (s *BranchStore) SetLatestLink(topic message.Topic, msgID message.MsgID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	branch, ok := s.branches[topic]
	if !ok {
		branch = &branchEntry{cursors: make(map[id.Permission]uint64)}
		s.branches[topic] = branch
	}
	branch.latestLink = msgID
	branch.hasLink = true
}

// GetLatestLink returns the branch's current latest link, if any.
func (s *BranchStore) GetLatestLink(topic message.Topic) (message.MsgID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	branch, ok := s.branches[topic]
	if !ok || !branch.hasLink {
		return message.MsgID{}, false
	}
	return branch.latestLink, true
}

func (s *BranchStore) getPermissionLocked(topic message.Topic, identifier id.Identifier) (id.Permission, bool) {
	branch, ok := s.branches[topic]
	if !ok {
		return id.Permission{}, false
	}
	for perm := range branch.cursors {
		if perm.Identifier.Equal(identifier) {
			return perm, true
		}
	}
	return id.Permission{}, false
}

// GetPermission returns the permission currently recorded for
// identifier on topic, regardless of what its cursor value is.
func (s *BranchStore) GetPermission(topic message.Topic, identifier id.Identifier) (id.Permission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPermissionLocked(topic, identifier)
}

// InsertCursor records cursor for permission on topic. If an entry
// already exists on topic for the same identifier under a different
// permission, that stale entry is removed first, so a user's permission
// change never leaves two live cursors behind for the same identifier on
// one branch. Entries on other branches are left alone.
func (s *BranchStore) InsertCursor(topic message.Topic, permission id.Permission, cursor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.getPermissionLocked(topic, permission.Identifier); ok && existing != permission {
		delete(s.branches[topic].cursors, existing)
	}

	branch, ok := s.branches[topic]
	if !ok {
		branch = &branchEntry{cursors: make(map[id.Permission]uint64)}
		s.branches[topic] = branch
	}
	branch.cursors[permission] = cursor
}

// GetCursor returns the stored cursor for identifier on topic,
// regardless of which permission it is currently keyed under.
func (s *BranchStore) GetCursor(topic message.Topic, identifier id.Identifier) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	branch, ok := s.branches[topic]
	if !ok {
		return 0, false
	}
	for perm, cursor := range branch.cursors {
		if perm.Identifier.Equal(identifier) {
			return cursor, true
		}
	}
	return 0, false
}

func (s *BranchStore) removeLocked(identifier id.Identifier) bool {
	removed := false
	for _, branch := range s.branches {
		for perm := range branch.cursors {
			if perm.Identifier.Equal(identifier) {
				delete(branch.cursors, perm)
				removed = true
			}
		}
	}
	return removed
}

// Remove deletes every cursor entry for identifier, across all
// branches.
func (s *BranchStore) Remove(identifier id.Identifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(identifier)
}

// Cursors returns a snapshot of every (topic, permission, cursor)
// triple currently tracked.
func (s *BranchStore) Cursors() []CursorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CursorEntry
	for topic, branch := range s.branches {
		for perm, cursor := range branch.cursors {
			out = append(out, CursorEntry{Topic: topic, Permission: perm, Cursor: cursor})
		}
	}
	return out
}
