// Package linkregistry is the Link Registry (LMI): the authoritative map of
// every DLM-registered link, its live parameters, its active bearers, and
// its liveness. It mirrors magic_lmi.c's clients table (a mutex-guarded
// slice with per-client bearer slots) but replaces the polling monitor
// thread with a single background goroutine, and replaces C callback
// pointers with a channel of typed events fanned out after the registry
// lock is released — the same "snapshot under lock, notify after unlock"
// shape the teacher's correlation_engine.go uses for its own
// subscriber notifications.
package linkregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/logger"
)

// EventKind distinguishes the link lifecycle events the registry emits.
type EventKind int

const (
	EventLinkUp EventKind = iota
	EventLinkDown
	EventLinkGoingDown
	EventLinkDetected
	EventParametersReport
)

func (k EventKind) String() string {
	switch k {
	case EventLinkUp:
		return "LINK_UP"
	case EventLinkDown:
		return "LINK_DOWN"
	case EventLinkGoingDown:
		return "LINK_GOING_DOWN"
	case EventLinkDetected:
		return "LINK_DETECTED"
	case EventParametersReport:
		return "LINK_PARAMETERS_REPORT"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to every subscriber after the registry lock is released.
type Event struct {
	Kind      EventKind
	LinkName  string
	Link      Link
	Timestamp time.Time
}

// Bearer is one allocated QoS-bound resource on a link (§3 Bearer).
type Bearer struct {
	ID          uint8
	CosID       uint8
	ForwardRate uint32
	ReturnRate  uint32
	CreatedAt   time.Time
	TxBytes     uint64
	RxBytes     uint64
}

// Parameters is the link's most recently reported live state.
type Parameters struct {
	CurrentTxRateKbps      uint32
	CurrentRxRateKbps      uint32
	SignalStrengthDbm      int32
	CurrentLatencyMs       uint32
	CurrentJitterMs        uint32
	PacketLossRate         float32
	AvailableBandwidthKbps uint32
}

// LinkState is the registry's view of link liveness.
type LinkState int

const (
	LinkStateDown LinkState = iota
	LinkStateUp
	LinkStateGoingDown
)

func (s LinkState) String() string {
	switch s {
	case LinkStateUp:
		return "UP"
	case LinkStateGoingDown:
		return "GOING_DOWN"
	default:
		return "DOWN"
	}
}

// Link is one registered datalink: identity, capability, live parameters, and bearers.
type Link struct {
	LinkName         string
	LinkType         dictionary.LinkType
	MaxBandwidthKbps uint32
	TypicalLatencyMs uint32
	SecurityLevel    uint8
	State            LinkState
	Parameters       Parameters
	Bearers          [MaxBearers]Bearer
	BearerActive     [MaxBearers]bool
	ActiveBearers    int
	LastSeen         time.Time
	RegisteredAt     time.Time
}

// MaxBearers bounds the per-link bearer slot table (§3, §5). Configurable
// via NewRegistry's maxBearers argument; this is the compiled-in ceiling.
const MaxBearers = 32

// Registry is the mutex-guarded Link Registry. All mutation happens under
// mu; event delivery happens after mu is released so a slow subscriber can
// never stall a registry update.
type Registry struct {
	mu         sync.RWMutex
	links      map[string]*Link
	maxBearers int

	subMu       sync.Mutex
	subscribers []chan Event

	heartbeatTimeout time.Duration
	scanInterval     time.Duration

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRegistry constructs an empty registry with the given liveness tuning.
func NewRegistry(maxBearersPerLink int, heartbeatTimeout, scanInterval time.Duration) *Registry {
	if maxBearersPerLink <= 0 || maxBearersPerLink > MaxBearers {
		maxBearersPerLink = MaxBearers
	}
	return &Registry{
		links:            make(map[string]*Link),
		maxBearers:       maxBearersPerLink,
		heartbeatTimeout: heartbeatTimeout,
		scanInterval:     scanInterval,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Subscribe registers a new event channel. The caller must keep draining it;
// the registry never blocks on a subscriber (see publish).
func (r *Registry) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	r.subMu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.subMu.Unlock()
	return ch
}

func (r *Registry) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			logger.Warn("link registry subscriber channel full, dropping event", "event", ev.Kind.String(), "link", ev.LinkName)
		}
	}
}

// Register adds or replaces a link's identity and capability (Ext_Link_Register.request).
func (r *Registry) Register(linkName string, linkType dictionary.LinkType, maxBandwidthKbps, typicalLatencyMs uint32, securityLevel uint8) error {
	if linkName == "" {
		return fmt.Errorf("linkregistry: empty link name")
	}
	now := time.Now()
	r.mu.Lock()
	link, exists := r.links[linkName]
	if !exists {
		link = &Link{LinkName: linkName, RegisteredAt: now}
		r.links[linkName] = link
	}
	link.LinkType = linkType
	link.MaxBandwidthKbps = maxBandwidthKbps
	link.TypicalLatencyMs = typicalLatencyMs
	link.SecurityLevel = securityLevel
	link.LastSeen = now
	r.mu.Unlock()
	return nil
}

// Unregister removes a link entirely (clean DLM shutdown).
func (r *Registry) Unregister(linkName string) {
	r.mu.Lock()
	delete(r.links, linkName)
	r.mu.Unlock()
}

// Get returns a copy of the named link's current state.
func (r *Registry) Get(linkName string) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	link, ok := r.links[linkName]
	if !ok {
		return Link{}, false
	}
	return *link, true
}

// All returns a snapshot copy of every registered link.
func (r *Registry) All() []Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Link, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, *l)
	}
	return out
}

// MarkUp transitions a link to UP and applies its initial parameters, firing LINK_UP.
func (r *Registry) MarkUp(linkName string, params Parameters) error {
	now := time.Now()
	r.mu.Lock()
	link, ok := r.links[linkName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("linkregistry: unknown link %q", linkName)
	}
	link.State = LinkStateUp
	link.Parameters = params
	link.LastSeen = now
	snapshot := *link
	r.mu.Unlock()

	r.publish(Event{Kind: EventLinkUp, LinkName: linkName, Link: snapshot, Timestamp: now})
	return nil
}

// MarkDown transitions a link to DOWN, firing LINK_DOWN.
func (r *Registry) MarkDown(linkName string) error {
	now := time.Now()
	r.mu.Lock()
	link, ok := r.links[linkName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("linkregistry: unknown link %q", linkName)
	}
	link.State = LinkStateDown
	link.Parameters = Parameters{}
	snapshot := *link
	r.mu.Unlock()

	r.publish(Event{Kind: EventLinkDown, LinkName: linkName, Link: snapshot, Timestamp: now})
	return nil
}

// MarkGoingDown fires the GOING_DOWN warning without clearing parameters yet.
func (r *Registry) MarkGoingDown(linkName string) error {
	now := time.Now()
	r.mu.Lock()
	link, ok := r.links[linkName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("linkregistry: unknown link %q", linkName)
	}
	link.State = LinkStateGoingDown
	snapshot := *link
	r.mu.Unlock()

	r.publish(Event{Kind: EventLinkGoingDown, LinkName: linkName, Link: snapshot, Timestamp: now})
	return nil
}

// ReportParameters applies a live parameter update and fires LINK_PARAMETERS_REPORT.
func (r *Registry) ReportParameters(linkName string, params Parameters) error {
	now := time.Now()
	r.mu.Lock()
	link, ok := r.links[linkName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("linkregistry: unknown link %q", linkName)
	}
	link.Parameters = params
	link.LastSeen = now
	snapshot := *link
	r.mu.Unlock()

	r.publish(Event{Kind: EventParametersReport, LinkName: linkName, Link: snapshot, Timestamp: now})
	return nil
}

// Touch records a heartbeat/liveness signal without changing link state.
func (r *Registry) Touch(linkName string) {
	r.mu.Lock()
	if link, ok := r.links[linkName]; ok {
		link.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// Detected announces a newly discovered but not-yet-registered link.
func (r *Registry) Detected(linkName string, linkType dictionary.LinkType) {
	now := time.Now()
	r.publish(Event{Kind: EventLinkDetected, LinkName: linkName, Link: Link{LinkName: linkName, LinkType: linkType}, Timestamp: now})
}
