package buildinfo

import "testing"

func TestShort(t *testing.T) {
	defer func(v, c string) { Version, Commit = v, c }(Version, Commit)

	tests := []struct {
		version, commit, want string
	}{
		{"dev", "unknown", "dev"},
		{"dev", "abc123", "abc123"},
		{"v0.2.0", "abc123", "v0.2.0"},
	}
	for _, tt := range tests {
		Version, Commit = tt.version, tt.commit
		if got := Short(); got != tt.want {
			t.Fatalf("Short() with %q/%q = %q, want %q", tt.version, tt.commit, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	want := "minirtos " + Version + " (commit " + Commit + ", built " + Date + ")"
	if got := Describe(); got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
}
