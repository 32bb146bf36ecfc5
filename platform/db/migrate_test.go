package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

type dbURL string

func (u dbURL) GetDatabaseURL() string { return string(u) }

func TestRunMigrationsSkipsWithoutDirectory(t *testing.T) {
	if err := RunMigrations(context.Background(), dbURL("postgres://unused"), "  "); err != nil {
		t.Fatalf("expected no-op for blank directory, got %v", err)
	}
}

func TestRunMigrationsReportsMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	err := RunMigrations(context.Background(), dbURL("postgres://unused"), dir)
	if err == nil {
		t.Fatal("expected an error for a missing migrations directory")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Fatalf("expected the directory in the error, got %v", err)
	}
}
