package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/timeline"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()

	w.Close()
	os.Stdout = old
	return <-outC
}

func TestVersionCommand(t *testing.T) {
	out := captureStdout(t, func() {
		versionCmd.Run(nil, nil)
	})

	// Version is "dev" by default in tests
	if !strings.Contains(out, "roster dev") {
		t.Errorf("Expected version output to contain 'roster dev', got: %s", out)
	}
	if !strings.Contains(out, "github.com/pders01/roster") {
		t.Errorf("Expected version output to contain 'github.com/pders01/roster', got: %s", out)
	}
}

func TestGenerateConfigCommand(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "roster", "config.toml")

	flagConfigOut = configFile
	defer func() { flagConfigOut = "" }()

	out := captureStdout(t, func() {
		configGenCmd.Run(nil, nil)
	})

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Errorf("Config file was not created at %s", configFile)
	}
	if !strings.Contains(out, "Generated default configuration at:") {
		t.Errorf("Expected output to contain 'Generated default configuration at:', got: %s", out)
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if loaded.Server.DefaultPerPage != 12 {
		t.Errorf("expected default perPage 12, got %d", loaded.Server.DefaultPerPage)
	}
}

func TestFormatTenure(t *testing.T) {
	tests := []struct {
		name     string
		tenure   storage.Tenure
		expected string
	}{
		{
			name:     "closed",
			tenure:   storage.Tenure{Start: &storage.YearMonth{Year: 2020, Month: 1}, End: &storage.YearMonth{Year: 2021, Month: 6}},
			expected: "2020-01 → 2021-06",
		},
		{
			name:     "open",
			tenure:   storage.Tenure{Start: &storage.YearMonth{Year: 2022, Month: 4}},
			expected: "2022-04 → present",
		},
		{
			name:     "unknown start",
			tenure:   storage.Tenure{},
			expected: "? → present",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTenure(tt.tenure); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestPrintMember(t *testing.T) {
	var buf bytes.Buffer
	m := storage.Member{
		Name:         "alice",
		DisplayNames: map[string]string{"en": "Alice", "ja": "アリス"},
		Tags:         []string{"rust"},
		Social:       map[string]string{"github": "alice"},
		Sources:      []string{"https://zenn.dev/alice"},
		Description:  "Writes about **Rust**.",
	}

	if err := printMember(&buf, m); err != nil {
		t.Fatalf("printMember: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"alice", "Alice", "アリス", "rust", "https://zenn.dev/alice", "Rust"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	report := &timeline.Report{
		RunID:     "run-1",
		Articles:  make([]storage.Article, 4),
		Sources:   3,
		Duration:  1500 * time.Millisecond,
		Persisted: true,
	}

	printReport(&buf, report, "/tmp/snapshot")

	out := buf.String()
	if !strings.Contains(out, "4 articles from 3 sources") {
		t.Errorf("unexpected summary: %s", out)
	}
	if !strings.Contains(out, "/tmp/snapshot") {
		t.Errorf("expected snapshot dir in output: %s", out)
	}
	if !strings.Contains(out, "run-1") {
		t.Errorf("expected run id in output: %s", out)
	}
}
