// Package harness drives scenarios against a renter and checks that the
// namespace it reports matches what was written.
//
// A run never panics or exits on failure: every outcome, good or bad, ends
// up in a Report, and the returned error says why the run did not pass.
package harness

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/renterprobe/internal/config"
	"github.com/fruitsalade/renterprobe/internal/logging"
	"github.com/fruitsalade/renterprobe/internal/metrics"
	"github.com/fruitsalade/renterprobe/pkg/client"
	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/protocol"
	"github.com/fruitsalade/renterprobe/pkg/retry"
)

var (
	// ErrMissingPaths is returned when the listing lacks expected entries.
	ErrMissingPaths = errors.New("missing paths")
	// ErrCheckFailed is returned when a property check does not hold.
	ErrCheckFailed = errors.New("check failed")
)

// StorageClient is the part of the renter API the harness drives.
// *client.Client implements it.
type StorageClient interface {
	BaseURL() string
	GetInfo(ctx context.Context) (*models.RenterInfo, error)
	ReserveSpace(ctx context.Context, amount int64) ([]models.Contract, error)
	ListContracts(ctx context.Context) ([]models.Contract, error)
	UploadFile(ctx context.Context, source, dest string, opts *client.UploadOptions) (*models.File, error)
	GetFile(ctx context.Context, fileID string) (*models.File, error)
	DownloadFile(ctx context.Context, fileID, destination string, opts *client.DownloadOptions) (*models.DownloadInfo, error)
	RenameFile(ctx context.Context, fileID, name string) (*models.File, error)
	CreateFolder(ctx context.Context, name string) (*models.File, error)
	ShareFile(ctx context.Context, fileID, renterAlias string) (*protocol.ShareResponse, error)
	RemoveFile(ctx context.Context, fileID string, opts *client.RemoveOptions) error
	ListFiles(ctx context.Context) ([]models.File, error)
}

// Options configures a Harness.
type Options struct {
	// Dir receives the synthetic files. It must be readable by the renter
	// process, since uploads reference local paths.
	Dir string
	// Seed for file sizes. 0 picks a time-based seed.
	Seed int64
	// WaitReady bounds how long WaitReady polls the renter.
	WaitReady time.Duration
	// ShareWith, when set, adds a share check against this peer alias.
	ShareWith string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Harness runs scenarios against one renter.
type Harness struct {
	client   StorageClient
	scenario config.Scenario
	opts     Options
	seed     int64
	rng      *rand.Rand
	logger   *zap.Logger
	metrics  *metrics.Metrics

	readyRetry retry.Config
}

// New creates a harness for the given scenario.
func New(c StorageClient, sc config.Scenario, opts Options) (*Harness, error) {
	if c == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if opts.Dir == "" {
		opts.Dir = "files"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Harness{
		client:   c,
		scenario: sc,
		opts:     opts,
		seed:     seed,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
		metrics:  opts.Metrics,
		readyRetry: retry.Config{
			InitialWait: 250 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Multiplier:  2,
			Jitter:      0.1,
		},
	}, nil
}

// RunSuite runs the suite the scenario selects.
func (h *Harness) RunSuite(ctx context.Context) (*Report, error) {
	switch h.scenario.Suite {
	case config.SuiteProperties:
		return h.RunProperties(ctx)
	case config.SuiteAll:
		rep := h.newReport(config.SuiteAll)
		err := h.multiUpload(ctx, rep)
		if err == nil {
			err = h.properties(ctx, rep)
		}
		return h.finish(rep, err)
	default:
		return h.Run(ctx)
	}
}

// Run executes the multi-upload scenario.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	rep := h.newReport(config.SuiteMultiUpload)
	return h.finish(rep, h.multiUpload(ctx, rep))
}

// RunProperties executes the property checks.
func (h *Harness) RunProperties(ctx context.Context) (*Report, error) {
	rep := h.newReport(config.SuiteProperties)
	return h.finish(rep, h.properties(ctx, rep))
}

func (h *Harness) newReport(suite string) *Report {
	rep := &Report{
		RunID:     uuid.NewString(),
		Suite:     suite,
		BaseURL:   h.client.BaseURL(),
		Seed:      h.seed,
		StartedAt: time.Now().UTC(),
	}
	h.logger.Info("run started",
		logging.String("run_id", rep.RunID),
		logging.String("suite", suite),
		logging.String("renter", rep.BaseURL),
		logging.Int64("seed", h.seed),
	)
	return rep
}

func (h *Harness) finish(rep *Report, err error) (*Report, error) {
	rep.FinishedAt = time.Now().UTC()
	rep.Passed = err == nil
	h.metrics.RecordRun(rep.Passed, len(rep.Missing), rep.FinishedAt)

	if err != nil {
		h.logger.Error("run failed",
			logging.String("run_id", rep.RunID),
			logging.Strings("missing", rep.Missing),
			logging.Err(err),
		)
		return rep, err
	}
	h.logger.Info("run passed",
		logging.String("run_id", rep.RunID),
		logging.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep, nil
}

// phase runs fn as a named step, timing it into the report. The first error
// is recorded as the report's failure.
func (h *Harness) phase(rep *Report, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	rep.Phases = append(rep.Phases, PhaseResult{Name: name, Duration: d, OK: err == nil})
	h.metrics.ObservePhase(name, d)

	if err != nil {
		if rep.Failure == nil {
			rep.Failure = failureFrom(name, err)
		}
		h.logger.Error("phase failed", logging.String("phase", name), logging.Err(err))
		return err
	}
	h.logger.Info("phase done", logging.String("phase", name), logging.Duration("elapsed", d))
	return nil
}
