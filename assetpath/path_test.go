package assetpath

import "testing"

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"/a/b.fbx":    true,
		"/a/b/":       true,
		"/":           false,
		"":            false,
		"a/b.fbx":     false,
		"/a//b.fbx":   false,
		"/a/\x00/b":   false,
		"/.baked/xyz": true,
	}
	for p, want := range cases {
		if got := Valid(p); got != want {
			t.Errorf("Valid(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestIsFolder(t *testing.T) {
	if !IsFolder("/a/b/") {
		t.Error("expected /a/b/ to be a folder")
	}
	if IsFolder("/a/b") {
		t.Error("expected /a/b to not be a folder")
	}
}

func TestIsHidden(t *testing.T) {
	if !IsHidden(HiddenPrefix + "abc/meta.json") {
		t.Error("expected hidden prefix path to be hidden")
	}
	if IsHidden("/models/cube.fbx") {
		t.Error("expected ordinary path to not be hidden")
	}
}

func TestHasPrefix(t *testing.T) {
	if !HasPrefix("/a/b/c.txt", "/a/b/") {
		t.Error("expected nested path to match folder prefix")
	}
	if HasPrefix("/a/bc.txt", "/a/b/") {
		t.Error("expected non-nested path to not match folder prefix")
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"/a/b.FBX":  "fbx",
		"/a/b.png":  "png",
		"/a/b":      "",
		"/a.b/c":    "",
		"/a/b.tar.gz": "gz",
	}
	for p, want := range cases {
		if got := Extension(p); got != want {
			t.Errorf("Extension(%q) = %q, want %q", p, got, want)
		}
	}
}
