package weave

import (
	"context"

	"github.com/opd-ai/weave/message"
)

// SyncResult is one address's outcome from a Sync pass.
type SyncResult struct {
	Address message.Address
	Result ReceiveResult
	Err error
}

// Sync self-drives discovery: for every (topic, identifier) cursor this
// user currently tracks, it derives the address at cursor+1, cursor+2,
// … via DeriveMsgID and calls Receive, continuing past individual
// failures so one orphaned or malformed message never blocks the rest
// of a branch. A cursor's walk stops the moment a derived address holds
// no message. The whole pass repeats across every known cursor until a
// full round receives no message without error, since processing one message
// can grow the cursor set (a BranchAnnounce registers a new topic, a
// Subscribe registers a new identifier) or advance another identifier's
// frontier, reconciling out-of-order receipt that a single round would
// miss.
func (u *User) Sync(ctx context.Context) []SyncResult {
	var out []SyncResult
	for {
		round := u.syncRound(ctx)
		out = append(out, round...)
		progressed := false
		for _, r := range round {
			if r.Err == nil {
				progressed = true
				break
			}
		}
		if !progressed {
			return out
		}
	}
}

// syncRound walks one sequence-frontier past the currently recorded
// cursor for every (topic, identifier) pair this user tracks, returning
// one SyncResult per address that actually held a message.
func (u *User) syncRound(ctx context.Context) []SyncResult {
	u.mu.Lock()
	appAddr := u.appAddr
	cursors := u.branches.Cursors()
	transport := u.transport
	u.mu.Unlock()

	var out []SyncResult
	for _, entry := range cursors {
		topicHash := entry.Topic.Hash()
		seq := entry.Cursor
		for {
			seq++
			addr := message.Address{
				AppAddr: appAddr,
				MsgID: message.DeriveMsgID(appAddr, entry.Permission.Identifier, topicHash, seq),
			}
			candidates, err := transport.RecvMessages(ctx, addr)
			if err != nil {
				out = append(out, SyncResult{Address: addr, Err: wrapTransportErr("recv_messages", err)})
				break
			}
			if len(candidates) == 0 {
				break
			}
			result, rerr := u.Receive(ctx, addr)
			out = append(out, SyncResult{Address: addr, Result: result, Err: rerr})
		}
	}
	return out
}
