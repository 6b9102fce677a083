//go:build !integration

package usecase_test

import (
	"testing"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/usecase"
)

func newHours() *usecase.BusinessHoursPolicy {
	return usecase.NewBusinessHoursPolicy(config.BusinessHoursConfig{StartHour: 9, EndHour: 18})
}

func TestBusinessHoursPolicy_Clamp(t *testing.T) {
	p := newHours()

	// 2026-01-05 is a Monday.
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "inside window is untouched",
			in:   time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
		},
		{
			name: "before opening moves to same day opening",
			in:   time.Date(2026, 1, 5, 7, 15, 0, 0, time.UTC),
			want: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "at closing moves to next day opening",
			in:   time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "after closing moves to next day opening",
			in:   time.Date(2026, 1, 5, 22, 45, 0, 0, time.UTC),
			want: time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday moves to monday opening",
			in:   time.Date(2026, 1, 10, 11, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday moves to monday opening",
			in:   time.Date(2026, 1, 11, 3, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "friday after close skips the weekend",
			in:   time.Date(2026, 1, 9, 19, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Clamp(tc.in)
			if !got.Equal(tc.want) {
				t.Errorf("Clamp(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestBusinessHoursPolicy_ClampIsIdempotent(t *testing.T) {
	p := newHours()

	inputs := []time.Time{
		time.Date(2026, 1, 5, 7, 15, 0, 0, time.UTC),
		time.Date(2026, 1, 9, 23, 59, 0, 0, time.UTC),
		time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
	}
	for _, in := range inputs {
		once := p.Clamp(in)
		twice := p.Clamp(once)
		if !once.Equal(twice) {
			t.Errorf("Clamp not idempotent for %v: first %v, second %v", in, once, twice)
		}
		if !p.Contains(once) {
			t.Errorf("Clamp(%v) = %v is outside the window", in, once)
		}
	}
}

func TestBusinessHoursPolicy_Contains(t *testing.T) {
	p := newHours()

	if p.Contains(time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)) {
		t.Error("saturday should not be inside the window")
	}
	if p.Contains(time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)) {
		t.Error("closing hour is exclusive")
	}
	if !p.Contains(time.Date(2026, 1, 5, 17, 59, 0, 0, time.UTC)) {
		t.Error("17:59 on a weekday should be inside the window")
	}
	if !p.Contains(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)) {
		t.Error("opening hour is inclusive")
	}
}
