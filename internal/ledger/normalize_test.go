package ledger

import "testing"

func TestMatchesCategory(t *testing.T) {
	cases := []struct {
		cat, prefix string
		want        bool
	}{
		{"Opex", "Opex", true},
		{"Opex:Marketing", "Opex", true},
		{"Opex:Marketing:Events", "Opex:Marketing", true},
		{"opex:marketing", "Opex", true},
		{"OpexX", "Opex", false},
		{"Revenue", "Opex", false},
		{"Opex", "Opex:Marketing", false},
		{"Revenue", "", true},
	}
	for _, tc := range cases {
		if got := MatchesCategory(tc.cat, tc.prefix); got != tc.want {
			t.Fatalf("MatchesCategory(%q, %q) = %v", tc.cat, tc.prefix, got)
		}
	}
}

func TestChildName(t *testing.T) {
	cases := map[string]string{
		"Opex:Marketing":        "Opex:Marketing",
		"Opex:Marketing:Events": "Opex:Marketing",
		"Opex":                  "Opex",
		"Revenue":               "Revenue",
	}
	for in, want := range cases {
		if got := ChildName(in, "Opex"); got != want {
			t.Fatalf("ChildName(%q) = %q want %q", in, got, want)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := normalizeCategory(" Opex : Marketing "); got != "Opex:Marketing" {
		t.Fatalf("got %q", got)
	}
}
