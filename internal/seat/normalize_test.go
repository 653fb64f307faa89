package seat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSection(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"134", "100x", true},
		{"100", "100x", true},
		{"199", "100x", true},
		{"250", "200x", true},
		{"599", "500x", true},
		{" 312 ", "300x", true},
		{"99", "", false},
		{"600", "", false},
		{"VIP", "", false},
		{"", "", false},
		{"12A", "", false},
		{"-134", "", false},
		{"99999999999999999999999", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := NormalizeSection(tc.raw)
			assert.Equal(t, tc.valid, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRow(t *testing.T) {
	tests := []struct {
		raw   string
		want  int
		valid bool
	}{
		{"A", 1, true},
		{"C", 3, true},
		{"Z", 26, true},
		{"AA", 27, true},
		{"BB", 28, true},
		{"ZZ", 52, true},
		{"5", 5, true},
		{" 12 ", 12, true},
		{"c", 3, true},
		{"aa", 27, true},
		{"AB", 0, false},
		{"AAA", 0, false},
		{"row", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"1A", 0, false},
		{"Ω", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := NormalizeRow(tc.raw)
			assert.Equal(t, tc.valid, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRowIgnoresSurroundingSpace(t *testing.T) {
	for _, raw := range []string{"row", "F", "17", "KK"} {
		want, wantOK := NormalizeRow(raw)
		got, gotOK := NormalizeRow(raw + " ")
		assert.Equal(t, wantOK, gotOK, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestDoubleLettersAreDistinct(t *testing.T) {
	seen := map[int]string{}
	for ch := 'A'; ch <= 'Z'; ch++ {
		for _, label := range []string{string(ch), string(ch) + string(ch)} {
			n, ok := NormalizeRow(label)
			assert.True(t, ok, label)
			if prev, dup := seen[n]; dup {
				t.Fatalf("%s and %s both map to %d", prev, label, n)
			}
			seen[n] = label
		}
	}
	assert.Len(t, seen, 52)
}
