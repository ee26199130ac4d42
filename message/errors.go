package message

import "errors"

// ErrMalformedHeader covers a bad version, a bad frame-type marker, or a
// non-zero reserved bit anywhere in HDF or PCF.
var ErrMalformedHeader = errors.New("message: malformed header")

// ErrUnsupportedMessageType is returned when an HDF's message_type field
// does not match any known content processor.
var ErrUnsupportedMessageType = errors.New("message: unsupported message type")

// ErrKeyNotFound is returned when a keyload's recipient list contains no
// slot matching the unwrapping user.
var ErrKeyNotFound = errors.New("message: recipient not found in keyload")

// ErrSignatureMismatch is this package's re-export of the DDML-level
// verification failure, kept distinct so callers never need to import
// ddml just to compare sentinel errors.
var ErrSignatureMismatch = errors.New("message: signature verification failed")

// ErrMacMismatch is the message-level re-export of ddml's MAC failure.
var ErrMacMismatch = errors.New("message: mac verification failed")

// ErrLinkedSpongosUnavailable is returned by UnwrapHDF when a header
// names a LinkedMsgID but the resolver callback has no cached spongos
// for it - the header's MAC cannot be keyed or verified without it.
var ErrLinkedSpongosUnavailable = errors.New("message: linked spongos unavailable for header")
