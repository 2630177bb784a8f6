package main

import (
	"context"
	"path/filepath"
	"testing"
)

func TestValidatePort(t *testing.T) {
	for _, port := range []int{-1, 0, 65536} {
		if err := validatePort(port); err == nil {
			t.Fatalf("expected error for port %d", port)
		}
	}
	if err := validatePort(8318); err != nil {
		t.Fatalf("expected valid port, got %v", err)
	}
}

func TestRun_MigrateOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DB_CONNECTION", "file:"+filepath.Join(dir, "contentjet.db"))

	args := []string{"-config", filepath.Join(dir, "missing.yaml"), "-env-file", filepath.Join(dir, "none.env"), "-migrate"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_RejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_CONNECTION", "file:"+filepath.Join(dir, "contentjet.db"))

	args := []string{"-config", filepath.Join(dir, "missing.yaml"), "-env-file", filepath.Join(dir, "none.env"), "-port", "70000", "-migrate"}
	if err := run(context.Background(), args); err == nil {
		t.Fatalf("expected invalid port error")
	}
}
