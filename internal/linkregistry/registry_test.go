package linkregistry

import (
	"testing"
	"time"

	"github.com/arinc839/cmcore/internal/dictionary"
)

func newTestRegistry() *Registry {
	return NewRegistry(8, 30*time.Second, 5*time.Second)
}

func TestRegisterAndGet(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register("ku-sat-0", dictionary.LinkTypeSatcomKu, 4096, 600, 2); err != nil {
		t.Fatalf("Register: %v", err)
	}
	link, ok := r.Get("ku-sat-0")
	if !ok {
		t.Fatal("expected link to exist")
	}
	if link.MaxBandwidthKbps != 4096 || link.LinkType != dictionary.LinkTypeSatcomKu {
		t.Fatalf("unexpected link: %+v", link)
	}
	if link.State != LinkStateDown {
		t.Fatalf("new link should start DOWN, got %v", link.State)
	}
}

func TestMarkUpDownFiresEvents(t *testing.T) {
	r := newTestRegistry()
	r.Register("vdl2-left", dictionary.LinkTypeVDL2, 32, 2000, 0)
	events := r.Subscribe(4)

	if err := r.MarkUp("vdl2-left", Parameters{AvailableBandwidthKbps: 20}); err != nil {
		t.Fatalf("MarkUp: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Kind != EventLinkUp {
			t.Fatalf("expected EventLinkUp, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for LINK_UP event")
	}

	if err := r.MarkDown("vdl2-left"); err != nil {
		t.Fatalf("MarkDown: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Kind != EventLinkDown {
			t.Fatalf("expected EventLinkDown, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for LINK_DOWN event")
	}

	link, _ := r.Get("vdl2-left")
	if link.State != LinkStateDown {
		t.Fatalf("expected DOWN after MarkDown, got %v", link.State)
	}
}

func TestUnknownLinkOperationsFail(t *testing.T) {
	r := newTestRegistry()
	if err := r.MarkUp("ghost", Parameters{}); err == nil {
		t.Fatal("expected error marking unknown link up")
	}
	if _, err := r.AllocateBearer("ghost", 0, 0, 0); err == nil {
		t.Fatal("expected error allocating bearer on unknown link")
	}
}

func TestLivenessTimeout(t *testing.T) {
	r := NewRegistry(8, 30*time.Millisecond, 10*time.Millisecond)
	r.Register("iridium-0", dictionary.LinkTypeSatcomL, 128, 1500, 0)
	r.MarkUp("iridium-0", Parameters{})

	r.StartLivenessMonitor()
	defer r.Stop()

	time.Sleep(100 * time.Millisecond)

	link, _ := r.Get("iridium-0")
	if link.State != LinkStateDown {
		t.Fatalf("expected link to time out to DOWN, got %v", link.State)
	}
}

func TestStopWithoutStartDoesNotBlock(t *testing.T) {
	r := newTestRegistry()
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked when monitor was never started")
	}
}
