package results

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fruitsalade/renterprobe/internal/harness"
)

type memSink struct {
	name  string
	err   error
	saved []*harness.Report
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Save(_ context.Context, rep *harness.Report) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, rep)
	return nil
}

func TestSaveAll_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("bucket unreachable")
	broken := &memSink{name: "s3", err: boom}
	ok := &memSink{name: "postgres"}
	rep := &harness.Report{RunID: "run-1"}

	err := SaveAll(context.Background(), rep, broken, ok)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "s3: bucket unreachable")
	assert.Len(t, ok.saved, 1)
}

func TestSaveAll_NoSinks(t *testing.T) {
	assert.NoError(t, SaveAll(context.Background(), &harness.Report{}))
}
