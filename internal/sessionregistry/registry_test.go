package sessionregistry

import "testing"

func TestCreateStartsConnecting(t *testing.T) {
	r := NewRegistry(4)
	sess, err := r.Create("sess-1", "client-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.State != StateConnecting {
		t.Fatalf("expected CONNECTING, got %v", sess.State)
	}
}

func TestDuplicateCreateRejected(t *testing.T) {
	r := NewRegistry(4)
	r.Create("sess-1", "client-a")
	if _, err := r.Create("sess-1", "client-b"); err == nil {
		t.Fatal("expected error creating duplicate session id")
	}
}

func TestCapacityEnforced(t *testing.T) {
	r := NewRegistry(1)
	r.Create("sess-1", "client-a")
	if _, err := r.Create("sess-2", "client-b"); err == nil {
		t.Fatal("expected capacity error")
	}
}

func TestFullLifecycleTransitions(t *testing.T) {
	r := NewRegistry(4)
	r.Create("sess-1", "client-a")

	if err := r.Authenticate("sess-1", "arinc839.example", "video-uplink"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	sess, _ := r.Get("sess-1")
	if sess.State != StateAuthenticated || sess.ClientRealm != "arinc839.example" {
		t.Fatalf("unexpected state after auth: %+v", sess)
	}

	if err := r.Transition("sess-1", StateActive); err != nil {
		t.Fatalf("Transition to ACTIVE: %v", err)
	}
	if err := r.BindLink("sess-1", "ku-sat-0", 2000, 500); err != nil {
		t.Fatalf("BindLink: %v", err)
	}
	sess, _ = r.Get("sess-1")
	if sess.CurrentLink != "ku-sat-0" || sess.GrantedBandwidthKbps != 2000 {
		t.Fatalf("unexpected state after bind: %+v", sess)
	}

	if err := r.Transition("sess-1", StateSuspended); err != nil {
		t.Fatalf("Transition to SUSPENDED: %v", err)
	}
	if err := r.Transition("sess-1", StateActive); err != nil {
		t.Fatalf("Transition back to ACTIVE: %v", err)
	}
	if err := r.Transition("sess-1", StateClosed); err != nil {
		t.Fatalf("Transition to CLOSED: %v", err)
	}
	if _, ok := r.Get("sess-1"); ok {
		t.Fatal("closed session should be removed from registry")
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	r := NewRegistry(4)
	r.Create("sess-1", "client-a")
	if err := r.Transition("sess-1", StateActive); err == nil {
		t.Fatal("expected error skipping AUTHENTICATED on the way to ACTIVE")
	}
}

func TestByLinkAndSubscribedTo(t *testing.T) {
	r := NewRegistry(4)
	r.Create("sess-1", "client-a")
	r.Authenticate("sess-1", "realm", "profile")
	r.Transition("sess-1", StateActive)
	r.BindLink("sess-1", "vdl2-left", 100, 20)
	r.SetSubscriptionLevel("sess-1", 3)

	onLink := r.ByLink("vdl2-left")
	if len(onLink) != 1 || onLink[0].SessionID != "sess-1" {
		t.Fatalf("unexpected ByLink result: %+v", onLink)
	}

	subscribed := r.SubscribedTo(1)
	if len(subscribed) != 1 {
		t.Fatalf("expected subscription level 3 to match bit 1, got %+v", subscribed)
	}
	notSubscribed := r.SubscribedTo(4)
	if len(notSubscribed) != 0 {
		t.Fatalf("expected no match for bit 4, got %+v", notSubscribed)
	}
}
