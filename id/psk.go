package id

import (
	"sync"

	"github.com/opd-ai/weave/spongos"
)

// PSKSize is the width of a pre-shared symmetric key.
const PSKSize = 32

// PSK is a pre-shared symmetric key identified by a 16-byte id.
type PSK struct {
	ID [PSKIDSize]byte
	Key [PSKSize]byte
}

// DerivePSKID derives a PSK's id deterministically from its key material
// via a spongos squeeze, so two users who agree on the same out-of-band
// key always compute the same id without a separate exchange.
func DerivePSKID(key [PSKSize]byte) [PSKIDSize]byte {
	s := spongos.New()
	s.Absorb(key[:])
	s.Commit()
	var id [PSKIDSize]byte
	copy(id[:], s.Squeeze(PSKIDSize))
	return id
}

// NewPSK builds a PSK, deriving its id from key.
func NewPSK(key [PSKSize]byte) PSK {
	return PSK{ID: DerivePSKID(key), Key: key}
}

// PSKTable is a user's map<PskId, Psk>, guarded by its own RWMutex so it
// is safe for concurrent use; it exists as a distinct type so it can be
// persisted independently.
type PSKTable struct {
	mu sync.RWMutex
	byID map[[PSKIDSize]byte]PSK
}

// NewPSKTable returns an empty table.
func NewPSKTable() *PSKTable {
	return &PSKTable{byID: make(map[[PSKIDSize]byte]PSK)}
}

// Insert adds or replaces psk.
func (t *PSKTable) Insert(psk PSK) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[psk.ID] = psk
}

// Get looks up a PSK by id.
func (t *PSKTable) Get(pskID [PSKIDSize]byte) (PSK, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	psk, ok := t.byID[pskID]
	return psk, ok
}

// Remove deletes a PSK by id.
func (t *PSKTable) Remove(pskID [PSKIDSize]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, pskID)
}

// All returns a snapshot of every PSK in the table.
func (t *PSKTable) All() []PSK {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PSK, 0, len(t.byID))
	for _, psk := range t.byID {
		out = append(out, psk)
	}
	return out
}
