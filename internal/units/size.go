// Package units converts between byte counts and the human-readable sizes
// Galaxy reports and accepts. Units are powers of 1024 throughout.
package units

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

var sizeUnits = []string{"", "KB", "MB", "GB", "TB", "PB"}

// ParseSize converts sizes such as "100", "1K", "1.5 MB" or "2.75gb" to bytes.
func ParseSize(s string) (int64, error) {
	size := strings.ToUpper(strings.TrimSpace(s))
	if size == "" {
		return 0, fmt.Errorf("empty size")
	}
	size = strings.TrimSuffix(size, "B")
	if size == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	if last := size[len(size)-1]; strings.IndexByte("KMGTP", last) >= 0 {
		size = strings.TrimSpace(size[:len(size)-1]) + " " + string(last) + "iB"
	}

	n, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// FormatSize renders a byte count the way Galaxy displays quotas, e.g.
// "100", "1.0 KB", "2.75 GB".
func FormatSize(n int64) string {
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(sizeUnits)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d", n)
	}
	s := humanize.FtoaWithDigits(size, 2)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + " " + sizeUnits[i]
}
