package health

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileCheck(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "graph.db")

	if err := os.WriteFile(tmpFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name          string
		path          string
		expectHealthy bool
	}{
		{
			name:          "existing file",
			path:          tmpFile,
			expectHealthy: true,
		},
		{
			name:          "existing directory",
			path:          tmpDir,
			expectHealthy: true,
		},
		{
			name:          "non-existent path",
			path:          filepath.Join(tmpDir, "missing", "graph.db"),
			expectHealthy: false,
		},
		{
			name:          "empty path",
			path:          "",
			expectHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := FileCheck(tt.path)

			if tt.expectHealthy && !status.IsHealthy() {
				t.Errorf("expected healthy status, got %s: %s", status.Status, status.Message)
			}

			if !tt.expectHealthy && status.IsHealthy() {
				t.Errorf("expected unhealthy status, got %s: %s", status.Status, status.Message)
			}

			if status.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestErrorCheck(t *testing.T) {
	ok := ErrorCheck("engine", nil)
	if !ok.IsHealthy() {
		t.Errorf("expected healthy, got %s", ok.Status)
	}

	failed := ErrorCheck("engine", errors.New("disk I/O error"))
	if !failed.IsUnhealthy() {
		t.Errorf("expected unhealthy, got %s", failed.Status)
	}
	if failed.Details["error"] != "disk I/O error" {
		t.Errorf("expected error detail, got %v", failed.Details)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name         string
		checks       []Status
		expectStatus string
	}{
		{
			name: "all healthy",
			checks: []Status{
				Healthy("engine"),
				Healthy("queue"),
				Healthy("feed"),
			},
			expectStatus: StatusHealthy,
		},
		{
			name: "one unhealthy",
			checks: []Status{
				Healthy("engine"),
				Unhealthy("queue stopped", nil),
				Healthy("feed"),
			},
			expectStatus: StatusUnhealthy,
		},
		{
			name: "one degraded",
			checks: []Status{
				Healthy("engine"),
				Degraded("feed unreachable", nil),
			},
			expectStatus: StatusDegraded,
		},
		{
			name: "unhealthy and degraded",
			checks: []Status{
				Degraded("feed unreachable", nil),
				Unhealthy("engine failed", nil),
			},
			expectStatus: StatusUnhealthy,
		},
		{
			name:         "no checks",
			checks:       nil,
			expectStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Combine(tt.checks...)

			if status.Status != tt.expectStatus {
				t.Errorf("expected status %s, got %s: %s", tt.expectStatus, status.Status, status.Message)
			}

			if status.Message == "" {
				t.Error("expected non-empty message")
			}

			if status.Status != StatusHealthy && status.Details == nil {
				t.Error("expected details for non-healthy status")
			}
		})
	}
}
