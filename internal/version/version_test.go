package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}

func TestGetMinorVersion(t *testing.T) {
	assert.Equal(t, "0.25", GetMinorVersion("0.25.1"))
	assert.Equal(t, "1.0", GetMinorVersion("1.0.0"))
	assert.Equal(t, "", GetMinorVersion("1"))
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version  string
		target   string
		expected bool
	}{
		{"0.2.0", "0.1.0", true},
		{"0.1.0", "0.1.0", true},
		{"0.1.0", "0.2.0", false},
		{"1.0.0", "0.9.9", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsVersionGreaterOrEqualThan(tt.version, tt.target),
			"version %s target %s", tt.version, tt.target)
	}
}
