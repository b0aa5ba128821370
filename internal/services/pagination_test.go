package services

import (
	"math"
	"testing"

	"betternews/internal/apperr"
)

func TestPageRequestNormalize(t *testing.T) {
	var p PageRequest
	if err := p.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := PageRequest{Page: DefaultPage, Limit: DefaultLimit, SortBy: SortPoints, OrderBy: OrderDesc}
	if p != want {
		t.Errorf("Expected defaults %+v, got %+v", want, p)
	}

	bad := []PageRequest{
		{Page: -1},
		{Limit: MaxLimit + 1},
		{Limit: -5},
		{SortBy: "votes"},
		{OrderBy: "up"},
	}
	for _, p := range bad {
		if err := p.normalize(); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("normalize(%+v): expected validation error, got %v", p, err)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{101, 25, 5},
	}
	for _, tt := range tests {
		if got := totalPages(tt.total, tt.limit); got != tt.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestBeyondEnd(t *testing.T) {
	p := PageRequest{Page: 3, Limit: 10}
	if p.beyondEnd(21) {
		t.Error("page 3 of 21 rows should exist")
	}
	if !p.beyondEnd(20) {
		t.Error("page 3 of 20 rows should be empty")
	}
	huge := PageRequest{Page: math.MaxInt/10 + 2, Limit: 10}
	if !huge.beyondEnd(1) {
		t.Error("a page whose offset overflows should be empty")
	}
	if !(PageRequest{Page: 1, Limit: 10}).beyondEnd(0) {
		t.Error("page 1 of no rows should be empty")
	}
	if p.offset() != 20 {
		t.Errorf("Expected offset 20, got %d", p.offset())
	}
}
