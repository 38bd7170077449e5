package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrationFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFiles(t, dir, map[string]string{
		"0001_init.sql":     "CREATE TABLE patients (id UUID PRIMARY KEY);",
		"0002_images.sql":   "CREATE TABLE medical_images (id UUID PRIMARY KEY);",
		"0003_reports.sql":  "CREATE TABLE diagnostic_reports (id UUID PRIMARY KEY);",
	})

	migrator := NewMigrator(nil, dir)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "0001_init.sql" {
		t.Errorf("expected name 0001_init.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE patients (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFiles(t, dir, map[string]string{
		"0010_late.sql":   "SELECT 10;",
		"0002_second.sql": "SELECT 2;",
		"0001_first.sql":  "SELECT 1;",
		"0005_middle.sql": "SELECT 5;",
	})

	migrator := NewMigrator(nil, dir)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expectedVersions := []int{1, 2, 5, 10}
	if len(migrations) != len(expectedVersions) {
		t.Fatalf("expected %d migrations, got %d", len(expectedVersions), len(migrations))
	}
	for i, expected := range expectedVersions {
		if migrations[i].Version != expected {
			t.Errorf("migration[%d]: expected version %d, got %d", i, expected, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFiles(t, dir, map[string]string{
		"0001_valid.sql":  "SELECT 1;",
		"readme.sql":      "-- this has no version prefix",
		"notes.txt":       "not a sql file",
		"abc_invalid.sql": "-- non-numeric prefix",
	})

	migrator := NewMigrator(nil, dir)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 1 {
		t.Fatalf("expected 1 valid migration, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	migrator := NewMigrator(nil, "/nonexistent/path/that/does/not/exist")
	if _, err := migrator.LoadMigrations(); err == nil {
		t.Error("expected error for non-existent directory")
	}
}
