package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	defer CloseAll()

	log := New("frontier-test")
	log.Info().Msg("hello")

	if _, err := os.Stat(filepath.Join(dir, "Logs", "frontier-test.log")); err != nil {
		t.Errorf("expected log file to be created: %v", err)
	}
}

func TestNewReusesFileHandleForSameName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	defer CloseAll()

	New("worker-test")
	New("worker-test")

	if len(openLog) != 1 {
		t.Errorf("expected one open log handle, got %d", len(openLog))
	}
}
