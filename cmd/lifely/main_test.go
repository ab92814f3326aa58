package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lifely/lifely/internal/models"
)

func TestWriteSummary(t *testing.T) {
	r := models.NewResult(2025)
	r.TimeStats = models.TimeStats{
		TotalEvents:   3,
		TotalHours:    4.5,
		HoursPerMonth: map[int]float64{3: 2, 6: 2.5},
		BusiestDay:    &models.BusiestDay{Date: "2025-06-20", EventCount: 2, Hours: 2.5},
	}
	r.FriendStats = []models.FriendStats{{Email: "masha@example.com", DisplayName: "Masha K", EventCount: 2, TotalHours: 3.5}}
	r.Warnings = []string{"location enrichment batch 1 (1 items): unavailable"}

	var buf bytes.Buffer
	if err := writeSummary(&buf, r); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Your 2025 in review",
		"3 events, 4.5 hours",
		"Busiest day: 2025-06-20",
		"Busiest month: June",
		"1. Masha K: 2 events, 3.5 hours",
		"Set OPENAI_API_KEY",
		"! location enrichment batch 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestBusiestMonth(t *testing.T) {
	tests := []struct {
		name   string
		hours  map[int]float64
		want   string
		wantOK bool
	}{
		{"Empty", nil, "", false},
		{"All zero", map[int]float64{1: 0}, "", false},
		{"Tie goes to earlier month", map[int]float64{2: 3, 9: 3}, "February", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := busiestMonth(tt.hours)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("busiestMonth() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRunCommandBasicStats(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.json")
	events := `[
  {"id": "a", "summary": "Dinner", "start": {"dateTime": "2025-03-14T19:00:00Z"}, "end": {"dateTime": "2025-03-14T21:00:00Z"},
   "attendees": [{"email": "me@example.com", "self": true}, {"email": "masha@example.com", "responseStatus": "accepted"}]}
]`
	if err := os.WriteFile(input, []byte(events), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	t.Setenv("LIFELY_CONFIG", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LIFELY_CACHE_DRIVER", "memory")
	t.Setenv("LIFELY_METRICS_ADDR", "")
	t.Setenv("LIFELY_TIMEZONE", "UTC")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"run", "--year", "2025", "--input", input, "--quiet"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v (stderr: %s)", err, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, `"total_events": 1`) || !strings.Contains(out, `"email": "masha@example.com"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, `"enriched": false`) {
		t.Errorf("expected basic result:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := stdout.String(); got != "lifely "+version+"\n" {
		t.Errorf("version output = %q", got)
	}
}
