package resource

import "testing"

func TestFullyQualifiedClassName(t *testing.T) {
	cases := []struct {
		pkg    string
		simple string
		want   string
	}{
		{"", "Foo.class", ""},
		{"com/foo", "Bar$Inner.class", "com/foo/Bar$Inner"},
		{"com/foo", "Bar.kt", "com/foo/Bar"},
		{"com/foo", "Bar", "com/foo/Bar"},
		{"org/x", "A.b.java", "org/x/A.b"},
	}
	for _, c := range cases {
		if got := FullyQualifiedClassName(c.pkg, c.simple); got != c.want {
			t.Errorf("FullyQualifiedClassName(%q, %q) = %q, want %q", c.pkg, c.simple, got, c.want)
		}
	}
}
