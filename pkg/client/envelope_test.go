package client

import (
	"errors"
	"testing"
)

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		reqPage     int
		reqSize     int
		wantNumber  int
		wantSize    int
		wantLen     int
		wantHasMore bool
		wantTotal   int
	}{
		{
			name:        "full envelope",
			body:        `{"content": [{"id": 1}, {"id": 2}], "paging": {"page": 2, "size": 2, "total": 5, "has_more": true}}`,
			reqPage:     2,
			reqSize:     2,
			wantNumber:  2,
			wantSize:    2,
			wantLen:     2,
			wantHasMore: true,
			wantTotal:   5,
		},
		{
			name:       "total absent defaults to size",
			body:       `{"content": [{"id": 1}], "paging": {"page": 1, "size": 100, "has_more": false}}`,
			reqPage:    1,
			reqSize:    100,
			wantNumber: 1,
			wantSize:   100,
			wantLen:    1,
			wantTotal:  100,
		},
		{
			name:       "paging absent",
			body:       `{"content": []}`,
			reqPage:    0,
			reqSize:    50,
			wantNumber: 1,
			wantSize:   50,
			wantLen:    0,
			wantTotal:  50,
		},
		{
			name:       "backend overrides size",
			body:       `{"content": [{"id": 1}], "paging": {"size": 10, "total": 1}}`,
			reqPage:    3,
			reqSize:    100,
			wantNumber: 3,
			wantSize:   10,
			wantLen:    1,
			wantTotal:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := decodePage([]byte(tt.body), "/contacts", tt.reqPage, tt.reqSize)
			if err != nil {
				t.Fatalf("decodePage() error = %v", err)
			}
			if page.PageNumber != tt.wantNumber {
				t.Errorf("PageNumber = %d, want %d", page.PageNumber, tt.wantNumber)
			}
			if page.PageSize != tt.wantSize {
				t.Errorf("PageSize = %d, want %d", page.PageSize, tt.wantSize)
			}
			if page.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", page.Len(), tt.wantLen)
			}
			if page.HasMore != tt.wantHasMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.wantHasMore)
			}
			if page.DeclaredTotal == nil || *page.DeclaredTotal != tt.wantTotal {
				t.Errorf("DeclaredTotal = %v, want %d", page.DeclaredTotal, tt.wantTotal)
			}
		})
	}
}

func TestDecodePage_Errors(t *testing.T) {
	_, err := decodePage([]byte(`{"paging": {"total": 0}}`), "/tickets", 1, 10)
	var emptyErr *EmptyContentError
	if !errors.As(err, &emptyErr) {
		t.Errorf("missing content: error = %v, want EmptyContentError", err)
	}

	_, err = decodePage([]byte(`{"content": null}`), "/tickets", 1, 10)
	if !errors.As(err, &emptyErr) {
		t.Errorf("null content: error = %v, want EmptyContentError", err)
	}

	if _, err := decodePage([]byte(`not json`), "/tickets", 1, 10); err == nil {
		t.Error("Expected decode error for invalid JSON")
	}
}

func TestFieldsToMap(t *testing.T) {
	got := FieldsToMap([]CustomField{
		{Key: "tier", Value: "silver"},
		{Key: "region", Value: "EU"},
		{Key: "tier", Value: "gold"},
	})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got["tier"] != "gold" {
		t.Errorf("tier = %q, want gold (later duplicate wins)", got["tier"])
	}
	if got["region"] != "EU" {
		t.Errorf("region = %q, want EU", got["region"])
	}

	if empty := FieldsToMap(nil); len(empty) != 0 {
		t.Errorf("FieldsToMap(nil) = %v, want empty", empty)
	}
}
