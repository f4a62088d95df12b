package events

import "testing"

type stubEvent string

func (s stubEvent) EventType() string { return string(s) }

func TestRecorderOrdersEvents(t *testing.T) {
	rec := NewRecorder()
	if rec.Latest() != nil {
		t.Fatalf("expected empty recorder to have no latest event")
	}
	rec.Emit(stubEvent("market.listing.created"))
	rec.Emit(stubEvent("market.offer.created"))
	rec.Emit(nil)

	if got := rec.Len(); got != 2 {
		t.Fatalf("expected 2 recorded events, got %d", got)
	}
	if got := rec.Latest().EventType(); got != "market.offer.created" {
		t.Fatalf("unexpected latest event: %s", got)
	}
	all := rec.All()
	if all[0].EventType() != "market.listing.created" {
		t.Fatalf("unexpected first event: %s", all[0].EventType())
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()
	multi := MultiEmitter{first, nil, second}
	multi.Emit(stubEvent("market.offer.accepted"))

	if first.Len() != 1 || second.Len() != 1 {
		t.Fatalf("expected both recorders to observe the event")
	}
}
