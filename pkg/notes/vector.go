package notes

import (
	"fmt"
	"strconv"
	"strings"
)

// formatVector renders a pgvector literal like [0.1,0.2,0.3].
func formatVector(vector []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// parseVector reads a pgvector literal back into a slice.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal: %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []float32{}, nil
	}

	parts := strings.Split(inner, ",")
	vector := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %d: %w", i, err)
		}
		vector[i] = float32(f)
	}
	return vector, nil
}
