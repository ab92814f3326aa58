package models

import (
	"testing"
	"time"
)

func TestRoundHours(t *testing.T) {
	tests := []struct {
		name     string
		hours    float64
		expected float64
	}{
		{"Whole hours", 2, 2},
		{"Round down", 1.24, 1.2},
		{"Round up", 1.25, 1.3},
		{"Third of an hour", 20.0 / 60, 0.3},
		{"Zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundHours(tt.hours); got != tt.expected {
				t.Errorf("RoundHours(%v) = %v, want %v", tt.hours, got, tt.expected)
			}
		})
	}
}

func TestNormalizedEvent_HoursAndDate(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	event := NormalizedEvent{
		ID:              "evt-1",
		Start:           time.Date(2025, 3, 14, 23, 30, 0, 0, loc),
		DurationMinutes: 90,
	}

	if got := event.Hours(); got != 1.5 {
		t.Errorf("Hours() = %v, want 1.5", got)
	}
	if got := event.Date(); got != "2025-03-14" {
		t.Errorf("Date() = %q, want local date 2025-03-14", got)
	}
}

func TestRawEventTime_IsZero(t *testing.T) {
	if !(RawEventTime{}).IsZero() {
		t.Error("empty time should be zero")
	}
	if (RawEventTime{Date: "2025-01-01"}).IsZero() {
		t.Error("date-only time should not be zero")
	}
}

func TestFriendStats_Name(t *testing.T) {
	tests := []struct {
		name     string
		friend   FriendStats
		expected string
	}{
		{"Display name wins", FriendStats{Email: "masha@example.com", DisplayName: "Masha K"}, "Masha K"},
		{"Email local part", FriendStats{Email: "masha@example.com"}, "masha"},
		{"Bare identifier", FriendStats{Email: "masha"}, "masha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.friend.Name(); got != tt.expected {
				t.Errorf("Name() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPhase_Order(t *testing.T) {
	for i, phase := range Phases {
		if phase.Order() != i {
			t.Errorf("%s.Order() = %d, want %d", phase, phase.Order(), i)
		}
	}
	if Phase("unknown").Order() != -1 {
		t.Error("unknown phase should have order -1")
	}
}

func TestNewResult_EmptyShape(t *testing.T) {
	r := NewResult(2025)

	if r.Year != 2025 {
		t.Errorf("Year = %d, want 2025", r.Year)
	}
	if r.FriendStats == nil || r.InferredFriends == nil || r.ActivityStats == nil {
		t.Error("collections should be non-nil")
	}
	if r.Patterns == nil || r.Experiments == nil || r.Warnings == nil {
		t.Error("generated collections should be non-nil")
	}
	if r.LocationStats.TopVenues == nil || r.LocationStats.MapPoints == nil {
		t.Error("location rankings should be non-nil")
	}
	if r.Narrative != nil {
		t.Error("narrative should start nil")
	}
}
