package main

import "testing"

func TestRunReturnsZeroOnHelp(t *testing.T) {
	if code := run([]string{"--help"}); code != 0 {
		t.Errorf("expected exit code 0 for --help, got %d", code)
	}
}

func TestRunReturnsOneWhenNoTaskIDGiven(t *testing.T) {
	if code := run([]string{}); code != 1 {
		t.Errorf("expected exit code 1 with no task id, got %d", code)
	}
}

func TestRunAcceptsTaskIDAsFlag(t *testing.T) {
	// --task-id alone (no DATABASE_URL etc. configured in the test
	// environment) should still fail past the config/store step, not at
	// flag parsing, and never panic.
	code := run([]string{"--task-id", "abc123"})
	if code == 0 {
		t.Errorf("expected a non-zero exit code without a configured store, got 0")
	}
}
