package hub

import (
	"testing"

	"go.uber.org/zap"
)

func TestBroadcastMatching(t *testing.T) {
	h := New(zap.NewNop())

	sectorClient := &Client{ID: "sector", Send: make(chan []byte, 1)}
	pointClient := &Client{ID: "point", Send: make(chan []byte, 1)}
	allClient := &Client{ID: "all", Send: make(chan []byte, 1)}
	h.Register(sectorClient)
	h.Register(pointClient)
	h.Register(allClient)

	h.UpdateSubscription(sectorClient, Subscription{SectorID: "s1"})
	h.UpdateSubscription(pointClient, Subscription{SectorID: "s1", ServicePointID: "p1"})

	h.Broadcast([]byte("event"), Subscription{SectorID: "s1", ServicePointID: "p2"})

	if len(sectorClient.Send) != 1 {
		t.Fatal("sector subscriber should receive sector events")
	}
	if len(pointClient.Send) != 0 {
		t.Fatal("point subscriber should not receive another point's events")
	}
	if len(allClient.Send) != 1 {
		t.Fatal("unfiltered subscriber should receive everything")
	}

	h.Broadcast([]byte("event"), Subscription{SectorID: "s2"})
	if len(sectorClient.Send) != 1 {
		t.Fatal("sector subscriber should not receive other sectors")
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := New(zap.NewNop())
	client := &Client{ID: "slow", Send: make(chan []byte, 1)}
	h.Register(client)

	h.Broadcast([]byte("one"), Subscription{})
	h.Broadcast([]byte("two"), Subscription{})

	if len(client.Send) != 1 {
		t.Fatalf("expected exactly one buffered message, got %d", len(client.Send))
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","sector_id":"s1","service_point_id":"p1"}`))
	if !ok {
		t.Fatal("expected valid subscribe message")
	}
	if msg.SectorID != "s1" || msg.ServicePointID != "p1" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, ok := ParseSubscribe([]byte(`{"action":"dance"}`)); ok {
		t.Fatal("unknown action must be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatal("invalid json must be rejected")
	}
}
