package id

import (
	"github.com/opd-ai/weave/ddml"
)

// PermissionKind discriminates the three Permission variants.
type PermissionKind uint8

const (
	PermissionRead PermissionKind = 0
	PermissionReadWrite PermissionKind = 1
	PermissionAdmin PermissionKind = 2
)

// DurationKind discriminates the four PermissionDuration variants. Only
// Perpetual has defined semantics in this core;
// the others are reserved tagged variants that Wrap still encodes but
// UnwrapPermission rejects with ErrUnsupportedPermissionDuration.
type DurationKind uint8

const (
	DurationPerpetual DurationKind = 0
	DurationUnixDeadline DurationKind = 1
	DurationRemainingBranchMsgs DurationKind = 2
	DurationRemainingStreamMsgs DurationKind = 3
)

// PermissionDuration is the tagged duration attached to a ReadWrite
// permission.
type PermissionDuration struct {
	Kind DurationKind
	UnixDeadline uint64
	RemainingBranchMsgs uint32
	RemainingStreamMsgs uint32
}

// Perpetual is the only duration with defined semantics in this core.
var Perpetual = PermissionDuration{Kind: DurationPerpetual}

// IsSupported reports whether d's semantics are defined here.
func (d PermissionDuration) IsSupported() bool {
	return d.Kind == DurationPerpetual
}

// Permission is Read(id) | ReadWrite(id, duration) | Admin(id). It is
// comparable, so it can key the branch store's cursor map directly -
// permission changes naturally re-key that map because the permission
// (not just the identifier) is the key.
type Permission struct {
	Kind PermissionKind
	Identifier Identifier
	Duration PermissionDuration // only meaningful when Kind == PermissionReadWrite
}

// NewReadPermission grants read-only access.
func NewReadPermission(identifier Identifier) Permission {
	return Permission{Kind: PermissionRead, Identifier: identifier}
}

// NewReadWritePermission grants publish access for duration.
func NewReadWritePermission(identifier Identifier, duration PermissionDuration) Permission {
	return Permission{Kind: PermissionReadWrite, Identifier: identifier, Duration: duration}
}

// NewAdminPermission grants branch-management access.
func NewAdminPermission(identifier Identifier) Permission {
	return Permission{Kind: PermissionAdmin, Identifier: identifier}
}

// CanPublish reports whether this permission allows sending a
// SignedPacket ("requires ReadWrite or Admin permission").
func (p Permission) CanPublish() bool {
	return p.Kind == PermissionReadWrite || p.Kind == PermissionAdmin
}

// CanManageBranch reports whether this permission allows issuing a
// BranchAnnounce or a keyload (admin-only operations).
func (p Permission) CanManageBranch() bool {
	return p.Kind == PermissionAdmin
}

// Wrap serializes the permission tag, identifier, and (for ReadWrite)
// duration onto ctx via absorb, never confidentially. In this module the
// codec is used by the persisted save format to store cursor entries.
func (p Permission) Wrap(ctx *ddml.WrapContext) error {
	if err := ctx.AbsorbUint8(byte(p.Kind)); err != nil {
		return err
	}
	if err := p.Identifier.AbsorbTagged(ctx); err != nil {
		return err
	}
	if p.Kind != PermissionReadWrite {
		return nil
	}
	return wrapDuration(ctx, p.Duration)
}

// UnwrapPermission parses the form produced by Permission.Wrap.
func UnwrapPermission(ctx *ddml.UnwrapContext) (Permission, error) {
	kindByte, err := ctx.AbsorbUint8()
	if err != nil {
		return Permission{}, err
	}
	identifier, err := UnabsorbTagged(ctx)
	if err != nil {
		return Permission{}, err
	}
	p := Permission{Kind: PermissionKind(kindByte), Identifier: identifier}
	if p.Kind != PermissionReadWrite {
		return p, nil
	}
	p.Duration, err = unwrapDuration(ctx)
	return p, err
}

func wrapDuration(ctx *ddml.WrapContext, d PermissionDuration) error {
	if err := ctx.AbsorbUint8(byte(d.Kind)); err != nil {
		return err
	}
	switch d.Kind {
	case DurationPerpetual:
		return nil
	case DurationUnixDeadline:
		return ctx.AbsorbSize(d.UnixDeadline)
	case DurationRemainingBranchMsgs:
		return ctx.AbsorbSize(uint64(d.RemainingBranchMsgs))
	case DurationRemainingStreamMsgs:
		return ctx.AbsorbSize(uint64(d.RemainingStreamMsgs))
	default:
		return ErrUnsupportedPermissionDuration
	}
}

func unwrapDuration(ctx *ddml.UnwrapContext) (PermissionDuration, error) {
	kindByte, err := ctx.AbsorbUint8()
	if err != nil {
		return PermissionDuration{}, err
	}
	d := PermissionDuration{Kind: DurationKind(kindByte)}
	var v uint64
	switch d.Kind {
	case DurationPerpetual:
		return d, nil
	case DurationUnixDeadline:
		v, err = ctx.AbsorbSize()
		d.UnixDeadline = v
	case DurationRemainingBranchMsgs:
		v, err = ctx.AbsorbSize()
		d.RemainingBranchMsgs = uint32(v)
	case DurationRemainingStreamMsgs:
		v, err = ctx.AbsorbSize()
		d.RemainingStreamMsgs = uint32(v)
	default:
		return PermissionDuration{}, ErrUnsupportedPermissionDuration
	}
	if err != nil {
		return PermissionDuration{}, err
	}
	// The duration's fields are read in full first, then anything but
	// Perpetual is rejected.
	if !d.IsSupported() {
		return PermissionDuration{}, ErrUnsupportedPermissionDuration
	}
	return d, nil
}
