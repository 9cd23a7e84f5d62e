package store

import (
	"errors"
	"testing"
)

type fakeResult struct {
	rows int64
	err  error
}

func (f fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (f fakeResult) RowsAffected() (int64, error) { return f.rows, f.err }

func TestRequireRowsAffectedAcceptsNonZero(t *testing.T) {
	if err := requireRowsAffected(fakeResult{rows: 1}); err != nil {
		t.Errorf("expected nil error for one affected row, got %v", err)
	}
}

func TestRequireRowsAffectedRejectsZero(t *testing.T) {
	err := requireRowsAffected(fakeResult{rows: 0})
	if !errors.Is(err, ErrNotTransitioned) {
		t.Errorf("expected ErrNotTransitioned for zero affected rows, got %v", err)
	}
}

func TestRequireRowsAffectedPropagatesUnderlyingError(t *testing.T) {
	boom := errors.New("boom")
	err := requireRowsAffected(fakeResult{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("expected underlying error wrapped, got %v", err)
	}
}
