package service

import "testing"

func TestNewPanicsOnNilRecorder(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on nil stats recorder")
		}
	}()
	New(nil)
}
