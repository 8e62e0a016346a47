package models

import "catalog-bff/internal/tier"

// User is the authenticated viewer reported by the auth check.
type User struct {
	ID               FlexString `json:"id"`
	Username         string     `json:"username,omitempty"`
	Email            string     `json:"email,omitempty"`
	SubscriptionTier tier.Tier  `json:"subscription_tier"`
	IsAdmin          bool       `json:"is_admin"`
}

// AuthCheck is the decoded auth-check response.
type AuthCheck struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

// Authenticated reports whether the check identified a user.
func (a AuthCheck) Authenticated() bool {
	return a.Success && a.User != nil
}
