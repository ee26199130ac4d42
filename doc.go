// Package weave implements a cryptographically secured multi-branch
// messaging protocol over a transport you supply: a spongos duplex
// sponge, a DDML wrap/unwrap schema layer built on top of it, and a
// User facade that sends, receives, and syncs messages across a tree
// of topic-addressed branches.
//
// # Getting Started
//
// An author originates a stream, which sends an Announce message and
// establishes the base topic:
//
//	identity, err := id.NewEd25519Identity(seed)
//	if err != nil {
//	 log.Fatal(err)
//	}
//	opts := weave.DefaultOptions()
//	opts.Identity = identity
//	opts.Transport = myTransport
//
//	author, err := weave.NewAuthor(ctx, opts, "chat.general", nonce)
//	if err != nil {
//	 log.Fatal(err)
//	}
//
//	addr, err := author.SendSignedPacket(ctx, "chat.general", []byte("hello"), nil)
//
// A subscriber derives the same stream address from the author's public
// identifier and joins by processing the announce message:
//
//	authorID, _ := author.Identifier()
//	sub, err := weave.NewSubscriber(opts, authorID, nonce)
//	if err != nil {
//	 log.Fatal(err)
//	}
//	if _, err := sub.Receive(ctx, sub.AnnounceAddress("chat.general")); err != nil {
//	 log.Fatal(err)
//	}
//	if _, err := sub.Subscribe(ctx); err != nil {
//	 log.Fatal(err)
//	}
//
// # Core Types
//
// - [User]: the per-participant facade - send, receive, sync, persist
// - [Options]: identity, PSK table, transport, resolver, lean mode
// - [ReceiveResult]: the outcome of processing one message
//
// # Sending and Receiving
//
// Every send derives its MsgId, wraps content on a fork of the branch's
// current spongos, and hands the wire bytes to Transport:
//
//	addr, err := author.SendTaggedPacket(ctx, topic, publicPayload, maskedPayload)
//
// Receive expects exactly one candidate message at an address, unwraps
// its header and content, and reports what happened:
//
//	result, err := sub.Receive(ctx, addr)
//	switch {
//	case errors.Is(err, weave.ErrOrphanMessage):
//	 // parent spongos not cached yet; retry after a later sync
//	case err != nil:
//	 log.Fatal(err)
//	default:
//	 fmt.Printf("%s: %s\n", result.Publisher, result.MaskedPayload)
//	}
//
// Sync self-drives discovery: it walks every known (topic, identifier)
// cursor forward by address until one comes up empty, repeating until a
// full pass finds nothing new.
//
//	for _, r := range sub.Sync(ctx) {
//	 if r.Err != nil {
//	 log.Printf("%s: %v", r.Address, r.Err)
//	 }
//	}
//
// # Branches and Permissions
//
// A branch Admin can fork a new sub-topic, restrict it behind a keyload,
// and grant or change a participant's permission locally:
//
//	branchAddr, err := author.CreateBranch(ctx, "chat.general", "chat.general.mods")
//	keyloadAddr, err := author.SendKeyload(ctx, "chat.general.mods", recipients, contentKey)
//	author.GrantPermission("chat.general.mods", id.NewReadWritePermission(modID, id.Perpetual))
//
// # Lean Mode
//
// Options.Lean bounds a User's spongos cache to the announce message,
// each branch's current tip, and anything the user authored itself,
// trading the ability to re-derive arbitrary historical forks for
// bounded memory use.
//
// # Persistence
//
// Export and Import round-trip a User's full state - identity, PSK
// table, branch store, cached spongos - through a PBKDF2+AES-256-GCM
// encrypted blob:
//
//	blob, err := author.Export(password)
//	restored, err := weave.Import(blob, password, opts)
//
// # Collaborating Packages
//
// - [github.com/opd-ai/weave/spongos]: the duplex sponge primitive
// - [github.com/opd-ai/weave/ddml]: the wrap/unwrap/sizeof schema layer
// - [github.com/opd-ai/weave/id]: identities, PSKs, and permissions
// - [github.com/opd-ai/weave/message]: HDF/PCF framing and per-type content
// - [github.com/opd-ai/weave/state]: the cursor and branch store
// - [github.com/opd-ai/weave/transport]: the Transport collaborator interface
package weave
