package version

import "testing"

func TestStringNormalizesPrefix(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no prefix", "1.0.0", "v1.0.0"},
		{"with v prefix", "v1.0.0", "v1.0.0"},
		{"dev", "dev", "vdev"},
		{"git describe", "v0.3.2-1-gabcdef", "v0.3.2-1-gabcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Version
			defer func() { Version = original }()

			Version = tt.input
			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
