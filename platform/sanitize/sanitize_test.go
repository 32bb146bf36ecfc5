package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Warehouse roof", want: "Warehouse roof"},
		{name: "tags", in: "<b>Budget</b> cut", want: "Budget cut"},
		{name: "encoded script", in: "&lt;script&gt;alert(1)&lt;/script&gt;lost", want: "alert(1)lost"},
		{name: "whitespace", in: "  too \t\t expensive  ", want: "too expensive"},
		{name: "keeps newlines", in: "line one\nline two", want: "line one\nline two"},
		{name: "nul bytes", in: "a\x00b", want: "ab"},
		{name: "only markup", in: "<p></p>", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	in := " <i>tag</i> "
	if got := TextPtr(&in); got == nil || *got != "tag" {
		t.Fatalf("unexpected result %v", got)
	}
}
