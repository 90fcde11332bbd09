package linkregistry

import (
	"fmt"
	"time"
)

// AllocateBearer claims the lowest free bearer slot on a link, mirroring
// magic_dlm_allocate_bearer's linear scan (magic_lmi.c) — slot indices are
// reused, not monotonic, so IDs cycle back through 1..MaxBearers as bearers
// are released.
func (r *Registry) AllocateBearer(linkName string, cosID uint8, forwardRate, returnRate uint32) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[linkName]
	if !ok {
		return 0, fmt.Errorf("linkregistry: unknown link %q", linkName)
	}
	for i := 0; i < r.maxBearers; i++ {
		if !link.BearerActive[i] {
			link.BearerActive[i] = true
			link.Bearers[i] = Bearer{
				ID:          uint8(i + 1),
				CosID:       cosID,
				ForwardRate: forwardRate,
				ReturnRate:  returnRate,
				CreatedAt:   time.Now(),
			}
			link.ActiveBearers++
			return uint8(i + 1), nil
		}
	}
	return 0, fmt.Errorf("linkregistry: link %q has no free bearer slots", linkName)
}

// ReleaseBearer frees a previously allocated bearer slot. Releasing an
// already-inactive slot is a no-op, matching the original's idempotent release.
func (r *Registry) ReleaseBearer(linkName string, bearerID uint8) error {
	if bearerID == 0 || int(bearerID) > r.maxBearers {
		return fmt.Errorf("linkregistry: bearer id %d out of range", bearerID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[linkName]
	if !ok {
		return fmt.Errorf("linkregistry: unknown link %q", linkName)
	}
	idx := int(bearerID) - 1
	if link.BearerActive[idx] {
		link.BearerActive[idx] = false
		link.Bearers[idx] = Bearer{}
		link.ActiveBearers--
	}
	return nil
}

// ActiveBearerCount returns the number of active bearers on a link, used by
// the policy engine's load-balancing term (§4.3 step 3e).
func (r *Registry) ActiveBearerCount(linkName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	link, ok := r.links[linkName]
	if !ok {
		return 0
	}
	return link.ActiveBearers
}
