package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/ticket-autobuy/internal/model"
)

func strp(s string) *string { return &s }

func TestApproves(t *testing.T) {
	rules := []model.ApprovalRule{
		{Section: "100x", MinRow: 3},
		{EventID: strp("E2"), Section: "200x", MinRow: 1},
	}

	tests := []struct {
		name    string
		listing model.Listing
		want    bool
	}{
		{"row equal to minimum", model.Listing{EventID: "E1", Section: "134", Row: "C"}, true},
		{"row past minimum", model.Listing{EventID: "E1", Section: "101", Row: "10"}, true},
		{"row before minimum", model.Listing{EventID: "E1", Section: "134", Row: "B"}, false},
		{"other section", model.Listing{EventID: "E1", Section: "334", Row: "Z"}, false},
		{"event scoped match", model.Listing{EventID: "E2", Section: "215", Row: "A"}, true},
		{"event scoped other event", model.Listing{EventID: "E1", Section: "215", Row: "A"}, false},
		{"section does not normalize", model.Listing{EventID: "E1", Section: "VIP", Row: "C"}, false},
		{"row does not normalize", model.Listing{EventID: "E1", Section: "134", Row: "GA"}, false},
		{"double letter row", model.Listing{EventID: "E1", Section: "134", Row: "AA"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := tc.listing
			assert.Equal(t, tc.want, Approves(&l, rules))
		})
	}
}

func TestApprovesNoRules(t *testing.T) {
	l := model.Listing{EventID: "E1", Section: "134", Row: "C"}
	assert.False(t, Approves(&l, nil))
}

func TestUnnormalizableListingIgnoresWildcardRules(t *testing.T) {
	rules := []model.ApprovalRule{{Section: "100x", MinRow: 0}, {Section: "VIP", MinRow: 0}}
	l := model.Listing{EventID: "E1", Section: "VIP", Row: "1"}
	assert.False(t, Approves(&l, rules))
}

func TestSectionToken(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"100x", "100x", true},
		{" 300X ", "300x", true},
		{"134", "100x", true},
		{"150x", "", false},
		{"700x", "", false},
		{"x", "", false},
		{"VIP", "", false},
	}
	for _, tc := range tests {
		got, ok := SectionToken(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
