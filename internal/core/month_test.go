package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2023-01", true},
		{"2025-12", true},
		{" 2024-06 ", true},
		{"2023-13", false},
		{"2023-00", false},
		{"2023-1", false},
		{"23-01", false},
		{"2023/01", false},
		{"2023-01-01", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseMonth(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidMonth) {
				t.Fatalf("%q expected ErrInvalidMonth, got %v", tc.in, err)
			}
		}
	}
}

func TestMonthArithmetic(t *testing.T) {
	m := MustMonth("2023-11")
	if got := m.Add(3).String(); got != "2024-02" {
		t.Fatalf("Add(3) = %s", got)
	}
	if got := m.Add(-11).String(); got != "2022-12" {
		t.Fatalf("Add(-11) = %s", got)
	}
	if m.Quarter() != 4 {
		t.Fatalf("quarter = %d", m.Quarter())
	}
	if !MustMonth("2023-01").Before(m) || m.Before(m) {
		t.Fatalf("Before ordering broken")
	}
	if NewMonth(2024, 13) != MustMonth("2025-01") {
		t.Fatalf("NewMonth should normalize overflow")
	}
	if QuarterStart(2025, 3) != NewMonth(2025, time.July) {
		t.Fatalf("QuarterStart(2025,3) = %s", QuarterStart(2025, 3))
	}
	if MustMonth("2023-06").Label() != "Jun 2023" {
		t.Fatalf("label = %s", MustMonth("2023-06").Label())
	}
}

func TestMonthsBetween(t *testing.T) {
	got := MonthsBetween(MustMonth("2023-11"), MustMonth("2024-02"))
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("at %d got %s want %s", i, got[i], want[i])
		}
	}
	if MonthsBetween(MustMonth("2024-02"), MustMonth("2024-01")) != nil {
		t.Fatalf("reversed bounds should be empty")
	}
}

func TestMonthText(t *testing.T) {
	var m Month
	if err := m.UnmarshalText([]byte("2024-03")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := m.MarshalText()
	if string(b) != "2024-03" {
		t.Fatalf("marshal = %s", b)
	}
	if (Month{}).String() != "" || !(Month{}).IsZero() {
		t.Fatalf("zero month should render empty")
	}
}
