package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  clip.mp4 ", "clip.mp4"},
		{"a/b\\c:d*e.mov", "a-b-c-d-e.mov"},
		{`what?"<>|.mp4`, "what.mp4"},
		{"../../etc/passwd", "-..-etc-passwd"},
		{".hidden.mp4", "hidden.mp4"},
		{"", ""},
		{"Bob's interview.mkv", "Bobs interview.mkv"},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExportName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"My Timeline", "My_Timeline"},
		{"Final cut! v2 ", "Final_cut_v2"},
		{"Café Société", "Cafe_Societe"},
		{"rough-cut_03", "rough-cut_03"},
		{"???", ""},
		{"  leading", "__leading"},
	}
	for _, tc := range cases {
		if got := ExportName(tc.in); got != tc.want {
			t.Errorf("ExportName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Proxy Tier", "proxy_tier"},
		{"  ", "unknown"},
		{"--__--", "unknown"},
		{"Émission 12", "emission_12"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
