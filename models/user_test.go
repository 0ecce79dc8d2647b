package models

import (
	"testing"
	"time"
)

func TestSubscriptionValid(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var u User
	if u.SubscriptionValid(now) {
		t.Error("user without any payment has a valid subscription")
	}

	recent := now.Add(-10 * 24 * time.Hour)
	u.LastPaymentAt = &recent
	if !u.SubscriptionValid(now) {
		t.Error("payment 10 days ago should still be valid")
	}

	old := now.Add(-31 * 24 * time.Hour)
	u.LastPaymentAt = &old
	if u.SubscriptionValid(now) {
		t.Error("payment 31 days ago should be expired")
	}
}

func TestHasLinks(t *testing.T) {
	cases := []struct {
		links string
		want  bool
	}{
		{"", false},
		{"[]", false},
		{"null", false},
		{`[{"label":"tiktok","url":"https://www.tiktok.com/@me"}]`, true},
	}
	for _, tc := range cases {
		u := User{Links: tc.links}
		if got := u.HasLinks(); got != tc.want {
			t.Errorf("HasLinks(%q) = %v, want %v", tc.links, got, tc.want)
		}
	}
}
