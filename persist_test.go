package weave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/transport"
)

func newTestAuthor(t *testing.T) (*User, *id.Identity) {
	t.Helper()
	identity, err := id.NewEd25519Identity([]byte("persist-author-seed"))
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Identity = identity
	opts.Transport = transport.NewSimulated()

	u, err := NewAuthor(context.Background(), opts, "chat.persist", []byte("nonce"))
	require.NoError(t, err)
	return u, identity
}

func TestExportImportRoundTripPreservesState(t *testing.T) {
	author, _ := newTestAuthor(t)
	ctx := context.Background()

	_, err := author.SendSignedPacket(ctx, "chat.persist", []byte("public"), []byte("masked"))
	require.NoError(t, err)

	password := []byte("correct horse battery staple")
	blob, err := author.Export(password)
	require.NoError(t, err)

	restoreOpts := DefaultOptions()
	restoreOpts.Transport = transport.NewSimulated()
	restored, err := Import(blob, password, restoreOpts)
	require.NoError(t, err)

	restoredID, ok := restored.Identifier()
	require.True(t, ok, "restored user should have recovered its local identity")
	authorID, _ := author.Identifier()
	assert.True(t, restoredID.Equal(authorID), "restored identity does not match the original")

	origLink, ok := author.branches.GetLatestLink("chat.persist")
	require.True(t, ok, "original branch should have a latest link")
	restoredLink, ok := restored.branches.GetLatestLink("chat.persist")
	require.True(t, ok, "restored branch should have a latest link")
	assert.Equal(t, origLink, restoredLink, "restored branch tip does not match the original")

	_, ok = restored.lookupSpongos(restoredLink)
	assert.True(t, ok, "restored user should still have the branch tip's spongos cached")

	// The restored user must be able to continue the chain: send another
	// signed packet without hitting ErrOrphanMessage.
	_, err = restored.SendSignedPacket(ctx, "chat.persist", []byte("public-2"), nil)
	assert.NoError(t, err, "restored user could not continue sending")
}

func TestImportRejectsWrongPassword(t *testing.T) {
	author, _ := newTestAuthor(t)

	blob, err := author.Export([]byte("right password"))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Transport = transport.NewSimulated()
	_, err = Import(blob, []byte("wrong password"), opts)
	assert.Error(t, err, "expected an error importing with the wrong password")
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	author, _ := newTestAuthor(t)

	blob, err := author.Export([]byte("password"))
	require.NoError(t, err)
	tampered := append([]byte(nil), blob...)
	tampered[1] = 0xff // corrupt the low byte of the version prefix

	opts := DefaultOptions()
	opts.Transport = transport.NewSimulated()
	_, err = Import(tampered, []byte("password"), opts)
	assert.ErrorIs(t, err, ErrUnsupportedSaveVersion)
}

func TestExportRejectsEmptyPassword(t *testing.T) {
	author, _ := newTestAuthor(t)
	_, err := author.Export(nil)
	assert.Error(t, err, "expected an error exporting with an empty password")
}

func TestExportPreservesPSKTable(t *testing.T) {
	author, _ := newTestAuthor(t)

	var key [id.PSKSize]byte
	copy(key[:], []byte("a shared pre-key for this branch"))
	psk := id.NewPSK(key)
	author.psks.Insert(psk)

	blob, err := author.Export([]byte("password"))
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Transport = transport.NewSimulated()
	restored, err := Import(blob, []byte("password"), opts)
	require.NoError(t, err)

	got, ok := restored.psks.Get(psk.ID)
	require.True(t, ok, "restored PSK table should contain the inserted key")
	assert.Equal(t, psk.Key, got.Key, "restored PSK key does not match the original")
}

func TestExportPreservesGrantedPermission(t *testing.T) {
	author, _ := newTestAuthor(t)
	modIdentity, err := id.NewEd25519Identity([]byte("mod-seed"))
	require.NoError(t, err)
	modID := modIdentity.Identifier()
	author.GrantPermission("chat.persist", id.NewReadWritePermission(modID, id.Perpetual))

	blob, err := author.Export([]byte("password"))
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Transport = transport.NewSimulated()
	restored, err := Import(blob, []byte("password"), opts)
	require.NoError(t, err)

	perm, ok := restored.branches.GetPermission("chat.persist", modID)
	require.True(t, ok, "restored branch store should retain the granted permission")
	assert.True(t, perm.CanPublish(), "restored permission lost its ReadWrite grant")
}
