package utils

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"+237699486146", "+237699486146"},
		{"237699486146", "+237699486146"},
		{"699486146", "+237699486146"},
		{"699 48 61 46", "+237699486146"},
		{"+33 6 12 34 56 78", "+33612345678"},
		{"  +237699486146  ", "+237699486146"},
		{"+237+699486146", "+237699486146"},
		{"237+699486146", "+237699486146"},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestComposePhone(t *testing.T) {
	cases := []struct {
		country, phone string
		want           string
	}{
		{"237", "699486146", "+237699486146"},
		{"+237", "699486146", "+237699486146"},
		{"", "699486146", "+237699486146"},
		{"+33", "612345678", "+33612345678"},
		{"+237", "+237699486146", "+237699486146"},
		{"237", "+237699486146", "+237699486146"},
		{"+237", "+33612345678", "+33612345678"},
	}
	for _, tc := range cases {
		if got := ComposePhone(tc.country, tc.phone); got != tc.want {
			t.Errorf("ComposePhone(%q, %q) = %q, want %q", tc.country, tc.phone, got, tc.want)
		}
	}
}
