package transport

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/weave/message"
)

// DeliveryRecord is one logged send, kept for test assertions and
// operator inspection - never consulted by the core itself.
type DeliveryRecord struct {
	Address message.Address
	Size int
	Timestamp time.Time
	Accepted bool
}

// Simulated is an in-memory Transport backed by a plain map. It is not
// a network client: every address lives only as long as the process,
// and every call is logged at warn level so a reader of the log never
// mistakes it for a real deployment.
//
// Simulated follows the same in-memory packet-delivery posture as
// toxcore.go's network simulator: log every call loudly, expose a
// delivery log for test assertions, reduced to the two verbs this
// transport actually needs.
type Simulated struct {
	mu sync.RWMutex
	messages map[message.Address][]byte
	deliveryLog []DeliveryRecord
	log *logrus.Entry
}

// NewSimulated returns an empty simulated transport.
func NewSimulated() *Simulated {
	return &Simulated{
		messages: make(map[message.Address][]byte),
		log: logrus.WithField("component", "transport.simulated"),
	}
}

// SendMessage stores bytes at address. A repeat call with bytes
// identical to what is already stored is a no-op (Accepted == false);
// a repeat call with different bytes is rejected, since a real
// transport has no way to let two different messages occupy one
// address.
func (s *Simulated) SendMessage(ctx context.Context, address message.Address, payload []byte) (SendResponse, error) {
	s.log.WithFields(logrus.Fields{
		"address": address,
		"bytes": len(payload),
	}).Warn("SIMULATION FUNCTION - NOT A REAL OPERATION: in-memory send_message")

	select {
	case <-ctx.Done():
		return SendResponse{}, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.messages[address]
	if ok {
		accepted := false
		if !bytes.Equal(existing, payload) {
			s.log.WithField("address", address).Warn("SIMULATION FUNCTION - NOT A REAL OPERATION: address collision with differing payload")
			return SendResponse{}, ErrAddressOccupied
		}
		s.deliveryLog = append(s.deliveryLog, DeliveryRecord{Address: address, Size: len(payload), Timestamp: time.Now(), Accepted: accepted})
		return SendResponse{Address: address, Accepted: accepted}, nil
	}

	stored := append([]byte(nil), payload...)
	s.messages[address] = stored
	s.deliveryLog = append(s.deliveryLog, DeliveryRecord{Address: address, Size: len(stored), Timestamp: time.Now(), Accepted: true})
	return SendResponse{Address: address, Accepted: true}, nil
}

// RecvMessages returns the single stored candidate at address, if any.
// A real multi-writer transport could return more than one; this
// simulation only ever has room for one payload per address, so the
// slice has length 0 or 1.
func (s *Simulated) RecvMessages(ctx context.Context, address message.Address) ([][]byte, error) {
	s.log.WithField("address", address).Warn("SIMULATION FUNCTION - NOT A REAL OPERATION: in-memory recv_messages")

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.messages[address]
	if !ok {
		return nil, nil
	}
	return [][]byte{append([]byte(nil), payload...)}, nil
}

// DeliveryLog returns a snapshot of every SendMessage call recorded so
// far, in call order.
func (s *Simulated) DeliveryLog() []DeliveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeliveryRecord, len(s.deliveryLog))
	copy(out, s.deliveryLog)
	return out
}

// ClearDeliveryLog discards the recorded log without touching stored
// messages.
func (s *Simulated) ClearDeliveryLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveryLog = nil
}
