package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"catalog-bff/internal/tier"
)

// FlexString decodes from a JSON string, number or null. Upstreams are not
// consistent about the type of ids and prices.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Collection is a tier-tagged bundle of content.
type Collection struct {
	ID           FlexString `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Price        FlexString `json:"price"`
	Tier         tier.Tier  `json:"tier"`
}

// AccessTier implements tier.Tiered.
func (c Collection) AccessTier() tier.Tier {
	return c.Tier
}

// SubscriptionPlan is a display-only plan offering.
type SubscriptionPlan struct {
	ID          FlexString `json:"id"`
	Title       string     `json:"title"`
	Price       FlexString `json:"price"`
	Period      *string    `json:"period"`
	Features    []string   `json:"features,omitempty"`
	Highlighted bool       `json:"highlighted"`
}

// IsRecurring reports whether the plan bills monthly; single-purchase
// plans have any other period or none.
func (p SubscriptionPlan) IsRecurring() bool {
	return p.Period != nil && *p.Period == "Monthly"
}

// Action is the call-to-action label shown with the plan.
func (p SubscriptionPlan) Action() string {
	if p.IsRecurring() {
		return "Subscribe Now"
	}
	return "Buy Now"
}

// MarshalJSON adds the derived recurring flag and action label.
func (p SubscriptionPlan) MarshalJSON() ([]byte, error) {
	type plan SubscriptionPlan
	return json.Marshal(struct {
		plan
		Recurring bool   `json:"recurring"`
		Action    string `json:"action"`
	}{plan(p), p.IsRecurring(), p.Action()})
}
