package stats

import (
	"context"
	"errors"
	"testing"

	"tower/internal/platform/store"
)

type fakeClickhouse struct {
	inserted [][]any
	failWith error
}

func (f *fakeClickhouse) Insert(_ context.Context, table string, data any) error {
	if f.failWith != nil {
		return f.failWith
	}
	rows, _ := data.([][]any)
	f.inserted = append(f.inserted, rows...)
	return nil
}
func (f *fakeClickhouse) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (f *fakeClickhouse) Close() error                                              { return nil }

func TestRecordJob_MirrorsToClickhouseWhenConfigured(t *testing.T) {
	ch := &fakeClickhouse{}
	r := &Recorder{ch: ch}

	r.mirrorToClickhouse(context.Background(), JobRecord{
		WorkerID: "w1", Device: "dev1", Outcome: OutcomeSuccess, JobID: "job-1",
	}, "")

	if len(ch.inserted) != 1 {
		t.Fatalf("expected 1 mirrored row, got %d", len(ch.inserted))
	}
	row := ch.inserted[0]
	if row[1] != "w1" || row[2] != "dev1" {
		t.Fatalf("unexpected row contents: %#v", row)
	}
}

func TestRecordJob_ClickhouseMirrorErrorsAreSwallowed(t *testing.T) {
	ch := &fakeClickhouse{failWith: errors.New("insert failed")}
	r := &Recorder{ch: ch}

	// must not panic and must not propagate the error -- RecordJob never
	// fails a job over a stats-mirror problem.
	r.mirrorToClickhouse(context.Background(), JobRecord{WorkerID: "w1", Device: "dev1"}, ErrorTypeOther)
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorType
	}{
		{"", ErrorTypeOther},
		{"invalid credential supplied", ErrorTypeAuth},
		{"Authentication failed: bad password", ErrorTypeAuth},
		{"permission denied for user", ErrorTypeAuth},
		{"device semaphore busy", ErrorTypeGating},
		{"lease not available", ErrorTypeGating},
		{"operation timed out after 30s", ErrorTypeTimeout},
		{"read timeout", ErrorTypeTimeout},
		{"connection refused", ErrorTypeNetwork},
		{"network unreachable", ErrorTypeNetwork},
		{"unexpected prompt from device", ErrorTypeOther},
	}
	for _, c := range cases {
		if got := ClassifyError(c.msg); got != c.want {
			t.Errorf("ClassifyError(%q) = %q, want %q", c.msg, got, c.want)
		}
	}
}

func TestClassifyErrorAuthTakesPrecedenceOverNetwork(t *testing.T) {
	// "connection" and "credential" both appear; auth terms are checked first.
	got := ClassifyError("connection rejected: invalid credential")
	if got != ErrorTypeAuth {
		t.Fatalf("ClassifyError() = %q, want auth (checked before network)", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("", 10, "unknown"); got != "unknown" {
		t.Fatalf("truncate empty = %q, want fallback", got)
	}
	if got := truncate("short", 10, "unknown"); got != "short" {
		t.Fatalf("truncate short = %q, want unchanged", got)
	}
	if got := truncate("this is a long string", 7, "unknown"); got != "this is" {
		t.Fatalf("truncate long = %q, want 7-char prefix", got)
	}
}

func TestEmptyToNone(t *testing.T) {
	if got := emptyToNone(""); got != "none" {
		t.Fatalf("emptyToNone(\"\") = %q, want none", got)
	}
	if got := emptyToNone("auth"); got != "auth" {
		t.Fatalf("emptyToNone(auth) = %q, want auth", got)
	}
}

func TestWorkerAndDeviceKeyFormat(t *testing.T) {
	if got, want := workerKey("w1"), "tom:stats:worker:w1"; got != want {
		t.Fatalf("workerKey() = %q, want %q", got, want)
	}
	if got, want := deviceKey("sw1"), "tom:stats:device:sw1"; got != want {
		t.Fatalf("deviceKey() = %q, want %q", got, want)
	}
}
