package coding

import "testing"

func TestLatestRulesetVersion(t *testing.T) {
	cases := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"single", []string{"v1.0.0"}, "v1.0.0"},
		{"picks highest", []string{"v1.0.0", "v2.0.0", "v1.5.0"}, "v2.0.0"},
		{"ignores unparseable", []string{"v1.0.0", "not-a-version"}, "v1.0.0"},
		{"all unparseable falls back to first", []string{"", "also-bad"}, ""},
		{"empty input", nil, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := LatestRulesetVersion(c.candidates)
			if got != c.want {
				t.Errorf("LatestRulesetVersion(%v) = %q, want %q", c.candidates, got, c.want)
			}
		})
	}
}
