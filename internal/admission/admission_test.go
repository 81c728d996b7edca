package admission

import "testing"

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"out of scope host", "https://example.com/", false},
		{"in scope subdomain", "https://www.ics.uci.edu/page", true},
		{"exact allowed host", "https://ics.uci.edu/", true},
		{"blacklisted pdf extension", "https://ics.uci.edu/file.pdf", false},
		{"blacklisted case-insensitive extension", "https://ics.uci.edu/file.PDF", false},
		{"too many path segments", "https://ics.uci.edu/" + repeat("a/", 26), false},
		{"repeated query key", "https://ics.uci.edu/?a=1&a=2&a=3", false},
		{"mailto scheme rejected", "mailto:foo@ics.uci.edu", false},
		{"session tracking param rejected", "https://ics.uci.edu/page?session=abc", false},
		{"utm tracking param rejected", "https://ics.uci.edu/page?utm_source=x", false},
		{"calendar with many params rejected", "https://ics.uci.edu/calendar?a=1&b=2&c=3&d=4", false},
		{"plain page with few params accepted", "https://ics.uci.edu/page?a=1&b=2", true},
		{"repeated path segment over limit", "https://ics.uci.edu/a/a/a/a/a/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.url); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsValidQueryValueLengthLimit(t *testing.T) {
	longValue := repeat("x", 101)
	url := "https://ics.uci.edu/page?a=" + longValue
	if IsValid(url) {
		t.Errorf("IsValid should reject a query value longer than 100 chars")
	}
}

func TestIsValidMalformedURL(t *testing.T) {
	if IsValid("ht!tp://bad url") {
		t.Errorf("IsValid should reject unparseable URLs")
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
