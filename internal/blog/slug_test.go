package blog

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Spaces  everywhere  ", "spaces-everywhere"},
		{"Already-hyphenated title", "already-hyphenated-title"},
		{"Symbols!@# stripped???", "symbols-stripped"},
		{"MixedCASE Title 42", "mixedcase-title-42"},
		{"---", "post"},
		{"", "post"},
	}
	for _, testCase := range cases {
		if got := Slugify(testCase.title); got != testCase.want {
			t.Fatalf("Slugify(%q) = %q, want %q", testCase.title, got, testCase.want)
		}
	}
}
