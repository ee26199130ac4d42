// Package ddml implements the wrap/unwrap/sizeof schema layer: the single
// declarative description of a message's byte layout, executed three
// different ways against a spongos.Spongos.
//
// Every content type in this module is a trio of free functions,
// SizeofX(...) int, WrapX(ctx, ...) and UnwrapX(ctx, ...), rather than a
// single generic interface - sizeof needs no I/O and no spongos at all,
// wrap owns an output cursor, and unwrap owns an input cursor and returns
// structured decode errors, so collapsing the three into one interface
// would force every primitive to juggle three unrelated signatures. Three
// small concrete context types keep each pass honest about what it
// actually touches.
package ddml
