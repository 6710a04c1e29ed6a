package schedule

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateWeekday(t *testing.T) {
	tests := []struct {
		date string
		want Weekday
	}{
		{"2025-09-01", Monday},
		{"2025-09-02", Tuesday},
		{"2025-09-03", Wednesday},
		{"2025-09-04", Thursday},
		{"2025-09-05", Friday},
		{"2025-09-06", Saturday},
		{"2025-09-07", Sunday},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := MustParseDate(tt.date).Weekday(); got != tt.want {
				t.Errorf("Weekday() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2025-09-28")

	if got := d.AddDays(3); got != MustParseDate("2025-10-01") {
		t.Errorf("AddDays(3) = %v, want 2025-10-01", got)
	}
	if got := d.AddDays(-30); got != MustParseDate("2025-08-29") {
		t.Errorf("AddDays(-30) = %v, want 2025-08-29", got)
	}
	if got := d.DaysSince(MustParseDate("2025-09-01")); got != 27 {
		t.Errorf("DaysSince() = %d, want 27", got)
	}
	if got := MustParseDate("2025-09-01").DaysSince(d); got != -27 {
		t.Errorf("DaysSince() = %d, want -27", got)
	}
	if !MustParseDate("2025-09-01").Before(d) || !d.After(MustParseDate("2025-09-01")) {
		t.Error("Before/After disagree")
	}
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Due Date `json:"due"`
	}

	b, err := json.Marshal(payload{Due: NewDate(2025, time.September, 7)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"due":"2025-09-07"}`; string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"due":"2025-09-07"}`), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.Due != NewDate(2025, time.September, 7) {
		t.Errorf("Unmarshal() = %v", p.Due)
	}

	if err := json.Unmarshal([]byte(`{"due":"09/07/2025"}`), &p); err == nil {
		t.Error("Unmarshal() expected error for non-ISO date")
	}
}

func TestDateScan(t *testing.T) {
	want := NewDate(2025, time.September, 7)

	tests := []struct {
		name string
		src  interface{}
		want Date
	}{
		{name: "time.Time", src: time.Date(2025, time.September, 7, 0, 0, 0, 0, time.UTC), want: want},
		{name: "iso string", src: "2025-09-07", want: want},
		{name: "datetime string", src: "2025-09-07 00:00:00", want: want},
		{name: "bytes", src: []byte("2025-09-07"), want: want},
		{name: "nil", src: nil, want: Date{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if d != tt.want {
				t.Errorf("Scan() = %v, want %v", d, tt.want)
			}
		})
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Error("Scan(int) expected error")
	}
}

func TestWeekNumber(t *testing.T) {
	win := Window{Start: MustParseDate("2025-09-01"), End: MustParseDate("2025-09-30")}

	tests := []struct {
		date string
		want int
	}{
		{"2025-08-25", 1}, // before the window clamps to week 1
		{"2025-09-01", 1},
		{"2025-09-07", 1},
		{"2025-09-08", 2},
		{"2025-09-14", 2},
		{"2025-09-15", 3},
		{"2025-09-30", 5},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := win.WeekNumber(MustParseDate(tt.date)); got != tt.want {
				t.Errorf("WeekNumber(%s) = %d, want %d", tt.date, got, tt.want)
			}
		})
	}
}
