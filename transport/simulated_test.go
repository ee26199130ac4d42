package transport

import (
	"bytes"
	"context"
	"testing"

	"github.com/opd-ai/weave/message"
)

func testAddress(b byte) message.Address {
	var addr message.Address
	addr.AppAddr[0] = b
	addr.MsgID[0] = b
	return addr
}

func TestSimulatedSendRecvRoundTrip(t *testing.T) {
	tr := NewSimulated()
	addr := testAddress(1)

	resp, err := tr.SendMessage(context.Background(), addr, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Accepted {
		t.Fatalf("expected first send to be accepted")
	}

	got, err := tr.RecvMessages(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !bytes.Equal(got[0], []byte("hello")) {
		t.Fatalf("unexpected recv result: %v", got)
	}
}

func TestSimulatedSendIsIdempotent(t *testing.T) {
	tr := NewSimulated()
	addr := testAddress(2)

	if _, err := tr.SendMessage(context.Background(), addr, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	resp, err := tr.SendMessage(context.Background(), addr, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Accepted {
		t.Fatalf("expected replay send to report Accepted == false")
	}

	log := tr.DeliveryLog()
	if len(log) != 2 {
		t.Fatalf("expected two delivery log entries, got %d", len(log))
	}
}

func TestSimulatedSendRejectsCollidingPayload(t *testing.T) {
	tr := NewSimulated()
	addr := testAddress(3)

	if _, err := tr.SendMessage(context.Background(), addr, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SendMessage(context.Background(), addr, []byte("second")); err != ErrAddressOccupied {
		t.Fatalf("expected ErrAddressOccupied, got %v", err)
	}
}

func TestSimulatedRecvEmptyAddress(t *testing.T) {
	tr := NewSimulated()
	got, err := tr.RecvMessages(context.Background(), testAddress(9))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}

func TestSimulatedRespectsContextCancellation(t *testing.T) {
	tr := NewSimulated()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tr.SendMessage(ctx, testAddress(4), []byte("x")); err == nil {
		t.Fatalf("expected cancelled context to error")
	}
	if _, err := tr.RecvMessages(ctx, testAddress(4)); err == nil {
		t.Fatalf("expected cancelled context to error")
	}
}
