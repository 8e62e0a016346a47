// Package tier ranks subscription tiers and decides which tier-tagged items
// a viewer may see.
package tier

import (
	"encoding/json"
	"strings"
)

// Tier is an access level carried by collections and subscriptions.
type Tier string

const (
	// None is the absent tier: an anonymous viewer or one without a subscription.
	None     Tier = ""
	Basic    Tier = "BASIC"
	Medium   Tier = "MEDIUM"
	Hardcore Tier = "HARDCORE"
)

// Parse trims surrounding whitespace. Case is significant.
func Parse(s string) Tier {
	return Tier(strings.TrimSpace(s))
}

// UnmarshalJSON decodes a JSON string through Parse; null is None.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*t = None
		return nil
	}
	*t = Parse(*s)
	return nil
}

func (t Tier) String() string {
	return string(t)
}

// Known reports whether t is one of the ranked tiers.
func (t Tier) Known() bool {
	return RankOf(t) > 0
}

// RankOf maps BASIC→1, MEDIUM→2, HARDCORE→3 and everything else to 0.
func RankOf(t Tier) int {
	switch t {
	case Basic:
		return 1
	case Medium:
		return 2
	case Hardcore:
		return 3
	default:
		return 0
	}
}

// Tiered is anything tagged with an access tier.
type Tiered interface {
	AccessTier() Tier
}

// CountUnknown counts items tagged with a non-empty tier outside the ranked
// set. Such items rank 0.
func CountUnknown[C Tiered](items []C) int {
	n := 0
	for _, item := range items {
		if t := item.AccessTier(); t != None && !t.Known() {
			n++
		}
	}
	return n
}

// VisibleCollections returns the items a viewer with the given tier may see,
// in input order. A viewer without a tier sees only BASIC items; otherwise
// an item is visible when its rank does not exceed the viewer's.
func VisibleCollections[C Tiered](items []C, viewer Tier) []C {
	out := make([]C, 0, len(items))
	if viewer == None {
		for _, item := range items {
			if item.AccessTier() == Basic {
				out = append(out, item)
			}
		}
		return out
	}

	limit := RankOf(viewer)
	for _, item := range items {
		if RankOf(item.AccessTier()) <= limit {
			out = append(out, item)
		}
	}
	return out
}
