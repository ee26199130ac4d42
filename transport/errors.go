package transport

import "errors"

// ErrAddressOccupied is returned by SendMessage when address already
// holds a different payload than the one being sent.
var ErrAddressOccupied = errors.New("transport: address already occupied by a different message")
