package main

import "testing"

func TestParseTargets(t *testing.T) {
	got, err := parseTargets(" 1.5, 2,,10 ")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].String() != "1.5" || got[2].String() != "10" {
		t.Errorf("unexpected targets %v", got)
	}

	for _, bad := range []string{"", "abc", "0.5"} {
		if _, err := parseTargets(bad); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}
