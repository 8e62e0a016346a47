package models

import (
	"encoding/json"
	"testing"

	"catalog-bff/internal/tier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    FlexString
		wantErr bool
	}{
		{name: "string", in: `"abc-1"`, want: "abc-1"},
		{name: "integer", in: `42`, want: "42"},
		{name: "decimal keeps precision", in: `19.90`, want: "19.90"},
		{name: "null", in: `null`, want: ""},
		{name: "bool rejected", in: `true`, wantErr: true},
		{name: "object rejected", in: `{"a":1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexString
			err := json.Unmarshal([]byte(tt.in), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestCollection_DecodesUpstreamShape(t *testing.T) {
	payload := `{"id": 7, "title": "Night Set", "description": "d", "thumbnail_url": "https://cdn/x.jpg", "price": "$9.99", "tier": "MEDIUM"}`

	var c Collection
	require.NoError(t, json.Unmarshal([]byte(payload), &c))
	assert.Equal(t, FlexString("7"), c.ID)
	assert.Equal(t, "https://cdn/x.jpg", c.ThumbnailURL)
	assert.Equal(t, FlexString("$9.99"), c.Price)
	assert.Equal(t, tier.Medium, c.AccessTier())
}

func TestSubscriptionPlan_OptionalFields(t *testing.T) {
	var plans []SubscriptionPlan
	payload := `[
		{"id": 1, "title": "Monthly", "price": 12, "period": "Monthly", "features": ["HD", "No ads"], "highlighted": true},
		{"id": 2, "title": "Lifetime", "price": "199", "period": null}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &plans))
	require.Len(t, plans, 2)

	assert.True(t, plans[0].IsRecurring())
	assert.Equal(t, []string{"HD", "No ads"}, plans[0].Features)
	assert.True(t, plans[0].Highlighted)

	assert.Nil(t, plans[1].Period)
	assert.Nil(t, plans[1].Features)
	assert.False(t, plans[1].IsRecurring())
}

func TestSubscriptionPlan_EncodesAction(t *testing.T) {
	monthly := "Monthly"
	data, err := json.Marshal([]SubscriptionPlan{
		{ID: "1", Title: "Monthly", Period: &monthly},
		{ID: "2", Title: "Lifetime"},
	})
	require.NoError(t, err)

	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0]["id"])
	assert.Equal(t, true, out[0]["recurring"])
	assert.Equal(t, "Subscribe Now", out[0]["action"])
	assert.Equal(t, false, out[1]["recurring"])
	assert.Equal(t, "Buy Now", out[1]["action"])
	assert.Nil(t, out[1]["period"])

	// The derived fields are ignored when read back.
	var plans []SubscriptionPlan
	require.NoError(t, json.Unmarshal(data, &plans))
	assert.Equal(t, "Monthly", *plans[0].Period)
}

func TestDecode_NormalisesTier(t *testing.T) {
	var c Collection
	require.NoError(t, json.Unmarshal([]byte(`{"id": 1, "tier": " BASIC\n"}`), &c))
	assert.Equal(t, tier.Basic, c.Tier)

	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id": "u1", "subscription_tier": "  MEDIUM "}`), &u))
	assert.Equal(t, tier.Medium, u.SubscriptionTier)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "u2", "subscription_tier": null}`), &u))
	assert.Equal(t, tier.None, u.SubscriptionTier)
}

func TestAuthCheck_Authenticated(t *testing.T) {
	var check AuthCheck
	require.NoError(t, json.Unmarshal([]byte(`{"success": true, "user": {"id": "u1", "subscription_tier": "HARDCORE", "is_admin": true}}`), &check))
	assert.True(t, check.Authenticated())
	assert.Equal(t, tier.Hardcore, check.User.SubscriptionTier)
	assert.True(t, check.User.IsAdmin)

	assert.False(t, AuthCheck{Success: true}.Authenticated())
	assert.False(t, AuthCheck{Success: false, User: &User{ID: "u1"}}.Authenticated())
}
