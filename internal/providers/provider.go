package providers

import (
	"context"

	"media-library/internal/library"
)

// Priority orders the provider chain. Lower values run first.
type Priority int

const (
	PriorityFirst  Priority = 1
	PrioritySecond Priority = 2
	PriorityThird  Priority = 3
	PriorityFourth Priority = 4
	PriorityLast   Priority = 5
)

// Provider fetches or derives metadata and images for catalog items.
//
// Fetch receives a context that is cancelled when the caller gives up, when
// a newer run for the same item supersedes this one, or when a
// configuration change makes the provider ineligible. It reports whether
// it changed the item; the manager then folds UpdateType into the outcome.
type Provider interface {
	Name() string
	Priority() Priority
	RequiresInternet() bool
	IsSlow() bool
	Version() string
	Supports(item *library.Item) bool
	NeedsRefresh(item *library.Item) (bool, error)
	Fetch(ctx context.Context, item *library.Item, force bool) (bool, error)
	UpdateType() library.UpdateType
}

// Capabilities is the static part of a provider that eligibility depends on.
type Capabilities struct {
	Name             string
	Priority         Priority
	RequiresInternet bool
	IsSlow           bool
	Supports         func(*library.Item) bool
}

// CapabilitiesOf snapshots p's declared capabilities.
func CapabilitiesOf(p Provider) Capabilities {
	return Capabilities{
		Name:             p.Name(),
		Priority:         p.Priority(),
		RequiresInternet: p.RequiresInternet(),
		IsSlow:           p.IsSlow(),
		Supports:         p.Supports,
	}
}
