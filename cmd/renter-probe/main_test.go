package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fruitsalade/renterprobe/internal/harness"
)

func TestPrintReport_Pass(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &harness.Report{
		RunID:  "run-1",
		Suite:  "multi-upload",
		Passed: true,
		Phases: []harness.PhaseResult{{Name: "reserve", Duration: 12 * time.Millisecond, OK: true}},
	})
	out := buf.String()
	if !strings.HasSuffix(out, "PASS\n") {
		t.Errorf("expected PASS as the last line, got:\n%s", out)
	}
	if !strings.Contains(out, "reserve") {
		t.Errorf("phase missing from output:\n%s", out)
	}
}

func TestPrintReport_ProtocolFailure(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &harness.Report{
		RunID: "run-2",
		Failure: &harness.Failure{
			Phase:      "upload-files",
			Method:     "POST",
			Endpoint:   "/files/upload",
			StatusCode: 500,
			Body:       `{"error":"a.txt already exists"}`,
			Message:    "a.txt already exists",
		},
	})
	out := buf.String()
	if strings.Contains(out, "PASS") {
		t.Errorf("failed run printed PASS:\n%s", out)
	}
	for _, want := range []string{"FAIL upload-files", "/files/upload", "500", `body: {"error":"a.txt already exists"}`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReport_Missing(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &harness.Report{
		Missing: []string{"pics/c.txt"},
		Failure: &harness.Failure{Phase: "verify", Message: "missing paths: pics/c.txt"},
	})
	out := buf.String()
	if !strings.Contains(out, "missing: pics/c.txt") || !strings.Contains(out, "FAIL verify") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, &harness.Report{RunID: "run-3", Passed: true}, true); err != nil {
		t.Fatal(err)
	}
	var got harness.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, buf.String())
	}
	if got.RunID != "run-3" || !got.Passed {
		t.Errorf("unexpected report: %+v", got)
	}
}

func TestWriteReport_JSONWriteError(t *testing.T) {
	err := writeReport(failingWriter{}, &harness.Report{RunID: "run-4"}, true)
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("expected the write error, got %v", err)
	}
}
