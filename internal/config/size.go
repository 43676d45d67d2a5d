package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// ParseSize parses a human-readable size string into bytes.
// Supports: 100, 100B, 100K, 100M, 100G, 100T (case-insensitive).
// Uses powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	multiplier := int64(1)
	numStr := s

	switch strings.ToUpper(s[len(s)-1:]) {
	case "B":
		numStr = s[:len(s)-1]
	case "K":
		multiplier = 1 << 10
		numStr = s[:len(s)-1]
	case "M":
		multiplier = 1 << 20
		numStr = s[:len(s)-1]
	case "G":
		multiplier = 1 << 30
		numStr = s[:len(s)-1]
	case "T":
		multiplier = 1 << 40
		numStr = s[:len(s)-1]
	}

	if numStr == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	// Try integer first, then float.
	if n, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative size: %q", s)
		}
		if n > math.MaxInt64/multiplier {
			return 0, fmt.Errorf("size too large: %q", s)
		}
		return n * multiplier, nil
	}

	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil || f < 0 || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	// float64(MaxInt64) rounds up to 2^63, which no int64 can hold.
	bytes := f * float64(multiplier)
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("size too large: %q", s)
	}
	return int64(bytes), nil
}

// Size is a pflag.Value holding a byte count parsed with ParseSize.
type Size int64

var _ pflag.Value = (*Size)(nil)

func (s *Size) String() string {
	return strconv.FormatInt(int64(*s), 10)
}

func (s *Size) Set(val string) error {
	n, err := ParseSize(val)
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

func (*Size) Type() string { return "size" }
