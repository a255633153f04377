package api

import "testing"

func TestResultConstructors(t *testing.T) {
	if r := Completed(42); r.Status != StatusCompleted || r.N != 42 {
		t.Errorf("Completed: %+v", r)
	}
	if r := Retrying(7); r.Status != StatusRetry || r.N != 7 {
		t.Errorf("Retrying: %+v", r)
	}
	if r := Failed(3); r.Status != StatusError || r.N != 3 {
		t.Errorf("Failed: %+v", r)
	}
	if r := MoreMemory(); r.Status != StatusMoreMemory {
		t.Errorf("MoreMemory: %+v", r)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusCompleted:  "completed",
		StatusRetry:      "retry",
		StatusError:      "error",
		StatusMoreMemory: "more-memory",
		Status(99):       "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestStructuredError(t *testing.T) {
	e := NewError(ErrCodeAlreadyExists, "duplicate registration").WithContext("fd", 5)
	if e.Code != ErrCodeAlreadyExists {
		t.Errorf("code = %d", e.Code)
	}
	if e.Error() == "duplicate registration" {
		t.Error("expected context in message")
	}
}
