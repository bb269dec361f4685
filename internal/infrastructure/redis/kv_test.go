package redis

import "testing"

func TestEscapeGlob(t *testing.T) {
	cases := map[string]string{
		"user:1:notif_": "user:1:notif_",
		"a*b":           `a\*b`,
		"x?[y]":         `x\?\[y\]`,
		`back\slash`:    `back\\slash`,
	}
	for in, want := range cases {
		if got := escapeGlob(in); got != want {
			t.Errorf("escapeGlob(%q) = %q, want %q", in, got, want)
		}
	}
}
