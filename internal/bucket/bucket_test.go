package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"avatar.png", "avatar.png"},
		{"../../etc/passwd", "passwd"},
		{"my photo (1).jpg", "my_photo__1_.jpg"},
		{"héllo.png", "h_llo.png"},
		{"", "upload"},
		{"///", "_"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}
