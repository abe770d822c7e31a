package harness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/renterprobe/internal/config"
	"github.com/fruitsalade/renterprobe/internal/fakerenter"
	"github.com/fruitsalade/renterprobe/internal/metrics"
	"github.com/fruitsalade/renterprobe/internal/payload"
	"github.com/fruitsalade/renterprobe/pkg/client"
	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/tree"
)

func smallScenario(suite string) config.Scenario {
	sc := config.DefaultScenario()
	sc.Suite = suite
	sc.MinSize = 2 * payload.KiB
	sc.MaxSize = 8 * payload.KiB
	return sc
}

func newFakeClient(t *testing.T) *client.Client {
	t.Helper()
	ts := httptest.NewServer(fakerenter.NewServer(fakerenter.NewStore("alice", "bob"), nil).Handler())
	t.Cleanup(ts.Close)
	c, err := client.New(client.Config{BaseURL: ts.URL})
	require.NoError(t, err)
	return c
}

func newHarness(t *testing.T, c StorageClient, sc config.Scenario, opts Options) *Harness {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	h, err := New(c, sc, opts)
	require.NoError(t, err)
	h.readyRetry.InitialWait = time.Millisecond
	h.readyRetry.MaxWait = 5 * time.Millisecond
	return h
}

// stubClient overrides parts of a real client to simulate misbehaving
// renters.
type stubClient struct {
	StorageClient

	reserveErr     error
	dropPath       string
	dropFolders    bool
	echoAtRoot     string
	forceOverwrite bool
	forceRecursive bool
	shortRename    bool
	contractsLimit int
	infoErrs       []error
	infoCalls      int
}

func (s *stubClient) ReserveSpace(ctx context.Context, amount int64) ([]models.Contract, error) {
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	return s.StorageClient.ReserveSpace(ctx, amount)
}

func (s *stubClient) ListFiles(ctx context.Context) ([]models.File, error) {
	files, err := s.StorageClient.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.File
	for _, f := range files {
		if f.Name == s.dropPath || (s.dropFolders && f.IsDir) {
			continue
		}
		out = append(out, f)
		if s.echoAtRoot != "" && f.Name != s.echoAtRoot && tree.Base(f.Name) == s.echoAtRoot {
			echo := f
			echo.Name = s.echoAtRoot
			out = append(out, echo)
		}
	}
	return out, nil
}

func (s *stubClient) ListContracts(ctx context.Context) ([]models.Contract, error) {
	contracts, err := s.StorageClient.ListContracts(ctx)
	if err != nil || s.contractsLimit == 0 || len(contracts) <= s.contractsLimit {
		return contracts, err
	}
	return contracts[:s.contractsLimit], nil
}

func (s *stubClient) RemoveFile(ctx context.Context, fileID string, opts *client.RemoveOptions) error {
	if s.forceRecursive {
		opts = &client.RemoveOptions{Recursive: client.Bool(true)}
	}
	return s.StorageClient.RemoveFile(ctx, fileID, opts)
}

func (s *stubClient) RenameFile(ctx context.Context, fileID, name string) (*models.File, error) {
	f, err := s.StorageClient.RenameFile(ctx, fileID, name)
	if err == nil && s.shortRename {
		f.Name = tree.Base(f.Name)
	}
	return f, err
}

func (s *stubClient) UploadFile(ctx context.Context, source, dest string, opts *client.UploadOptions) (*models.File, error) {
	if s.forceOverwrite {
		opts = &client.UploadOptions{Overwrite: client.Bool(true)}
	}
	return s.StorageClient.UploadFile(ctx, source, dest, opts)
}

func (s *stubClient) GetInfo(ctx context.Context) (*models.RenterInfo, error) {
	s.infoCalls++
	if len(s.infoErrs) > 0 {
		err := s.infoErrs[0]
		s.infoErrs = s.infoErrs[1:]
		return nil, err
	}
	return s.StorageClient.GetInfo(ctx)
}

func TestRun_MultiUploadPasses(t *testing.T) {
	m := metrics.New()
	h := newHarness(t, newFakeClient(t), smallScenario(config.SuiteMultiUpload), Options{Metrics: m})

	rep, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Empty(t, rep.Missing)
	assert.Nil(t, rep.Failure)
	assert.Len(t, rep.Expected, 12)
	assert.Equal(t, 12, rep.Uploads)
	require.Len(t, rep.Files, 3)

	for _, f := range rep.Files {
		assert.Zero(t, f.Size%payload.ChunkSize)
		assert.GreaterOrEqual(t, f.Size, 2*payload.KiB)
		assert.LessOrEqual(t, f.Size, 8*payload.KiB)
		digest, err := payload.DigestFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Digest, digest, "synthetic files are never mutated")
	}

	var names []string
	for _, p := range rep.Phases {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"reserve", "upload-files", "create-folders", "upload-nested", "verify"}, names)
}

func TestRun_ReportsMissingPaths(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), dropPath: "work/b.txt"}
	h := newHarness(t, stub, smallScenario(config.SuiteMultiUpload), Options{})

	rep, err := h.Run(context.Background())
	require.ErrorIs(t, err, ErrMissingPaths)
	assert.False(t, rep.Passed)
	assert.Equal(t, []string{"work/b.txt"}, rep.Missing)
	require.NotNil(t, rep.Failure)
	assert.Equal(t, "verify", rep.Failure.Phase)
	assert.False(t, rep.Failure.Protocol())
}

func TestRun_FolderEntriesNotRequired(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), dropFolders: true}
	h := newHarness(t, stub, smallScenario(config.SuiteMultiUpload), Options{})

	rep, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Empty(t, rep.Missing)
	assert.Len(t, rep.Expected, 12)
	for _, folder := range []string{"pics", "school", "work"} {
		assert.NotContains(t, rep.Expected, folder)
	}
}

func TestRun_FailsFastOnReserve(t *testing.T) {
	stub := &stubClient{
		StorageClient: newFakeClient(t),
		reserveErr: &client.APIError{
			Method:     http.MethodPost,
			Endpoint:   "/reserve-storage",
			StatusCode: http.StatusInternalServerError,
			Body:       []byte(`{"error":"no providers"}`),
			JSON:       map[string]any{"error": "no providers"},
		},
	}
	h := newHarness(t, stub, smallScenario(config.SuiteMultiUpload), Options{})

	rep, err := h.Run(context.Background())
	require.Error(t, err)
	assert.False(t, rep.Passed)
	assert.Zero(t, rep.Uploads)
	assert.Empty(t, rep.Files, "nothing is generated after a failed reservation")
	require.Len(t, rep.Phases, 1)

	require.NotNil(t, rep.Failure)
	assert.True(t, rep.Failure.Protocol())
	assert.Equal(t, "reserve", rep.Failure.Phase)
	assert.Equal(t, "/reserve-storage", rep.Failure.Endpoint)
	assert.Equal(t, http.StatusInternalServerError, rep.Failure.StatusCode)
	assert.Equal(t, "no providers", rep.Failure.Message)
}

func TestRun_StopsAtFirstRejectedUpload(t *testing.T) {
	c := newFakeClient(t)
	sc := smallScenario(config.SuiteMultiUpload)
	h := newHarness(t, c, sc, Options{})

	_, err := h.Run(context.Background())
	require.NoError(t, err)

	// A second run collides with the first one's a.txt.
	rep, err := h.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, rep.Uploads)
	require.NotNil(t, rep.Failure)
	assert.Equal(t, "upload-files", rep.Failure.Phase)
	assert.Equal(t, "/files/upload", rep.Failure.Endpoint)
	assert.Contains(t, rep.Failure.Body, "already exists")
}

func TestRunProperties_Pass(t *testing.T) {
	h := newHarness(t, newFakeClient(t), smallScenario(config.SuiteProperties), Options{ShareWith: "bob"})

	rep, err := h.RunProperties(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	require.Len(t, rep.Checks, 8)
	for _, c := range rep.Checks {
		assert.True(t, c.Passed, "check %s: %s", c.Name, c.Detail)
	}
	assert.True(t, rep.CheckPassed("download"))
}

func TestRunProperties_DetectsSilentOverwrite(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), forceOverwrite: true}
	h := newHarness(t, stub, smallScenario(config.SuiteProperties), Options{})

	rep, err := h.RunProperties(context.Background())
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.True(t, rep.CheckPassed("round-trip"))
	assert.False(t, rep.CheckPassed("overwrite"))
	assert.Len(t, rep.Checks, 2, "checks stop at the first failure")
	assert.Contains(t, rep.Checks[1].Detail, "was accepted")
}

func TestRunProperties_DetectsStrayListing(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), echoAtRoot: "only.bin"}
	h := newHarness(t, stub, smallScenario(config.SuiteProperties), Options{})

	rep, err := h.RunProperties(context.Background())
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.False(t, rep.CheckPassed("hierarchy"))
	require.Len(t, rep.Checks, 3)
	assert.Contains(t, rep.Checks[2].Detail, "listed outside its folder")
}

func TestRunProperties_DetectsUnderReportedContracts(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), contractsLimit: 1}
	h := newHarness(t, stub, smallScenario(config.SuiteProperties), Options{})

	rep, err := h.RunProperties(context.Background())
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.True(t, rep.CheckPassed("hierarchy"))
	assert.False(t, rep.CheckPassed("reservation"))
	require.Len(t, rep.Checks, 4)
	assert.Contains(t, rep.Checks[3].Detail, "contracts grew from")
}

func TestRunProperties_DetectsUnguardedFolderRemoval(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), forceRecursive: true}
	h := newHarness(t, stub, smallScenario(config.SuiteProperties), Options{})

	rep, err := h.RunProperties(context.Background())
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.False(t, rep.CheckPassed("removal"))
	require.Len(t, rep.Checks, 5)
	assert.Contains(t, rep.Checks[4].Detail, "was accepted")
}

func TestRunProperties_DetectsWrongRenameResult(t *testing.T) {
	stub := &stubClient{StorageClient: newFakeClient(t), shortRename: true}
	h := newHarness(t, stub, smallScenario(config.SuiteProperties), Options{})

	rep, err := h.RunProperties(context.Background())
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.True(t, rep.CheckPassed("removal"))
	assert.False(t, rep.CheckPassed("rename"))
	require.Len(t, rep.Checks, 6)
	assert.Contains(t, rep.Checks[5].Detail, `rename reported "renamed.bin"`)
}

func TestRunSuite_All(t *testing.T) {
	h := newHarness(t, newFakeClient(t), smallScenario(config.SuiteAll), Options{})

	rep, err := h.RunSuite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.SuiteAll, rep.Suite)
	assert.Equal(t, 12, rep.Uploads)
	assert.Len(t, rep.Checks, 7)
}

func TestWaitReady_RetriesTransportErrors(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://renter/info", Err: errors.New("connection refused")}
	stub := &stubClient{StorageClient: newFakeClient(t), infoErrs: []error{refused, refused}}
	h := newHarness(t, stub, smallScenario(config.SuiteMultiUpload), Options{WaitReady: 5 * time.Second})

	info, err := h.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Alias)
	assert.Equal(t, 3, stub.infoCalls)
}

func TestWaitReady_DoesNotRetryRejections(t *testing.T) {
	stub := &stubClient{
		StorageClient: newFakeClient(t),
		infoErrs:      []error{&client.APIError{StatusCode: http.StatusServiceUnavailable}},
	}
	h := newHarness(t, stub, smallScenario(config.SuiteMultiUpload), Options{WaitReady: 5 * time.Second})

	_, err := h.WaitReady(context.Background())
	assert.True(t, client.IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, 1, stub.infoCalls)
}

func TestWaitReady_GivesUp(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://renter/info", Err: errors.New("connection refused")}
	errs := make([]error, 1000)
	for i := range errs {
		errs[i] = refused
	}
	stub := &stubClient{StorageClient: newFakeClient(t), infoErrs: errs}
	h := newHarness(t, stub, smallScenario(config.SuiteMultiUpload), Options{WaitReady: 50 * time.Millisecond})

	_, err := h.WaitReady(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_RejectsInvalidScenario(t *testing.T) {
	sc := smallScenario(config.SuiteMultiUpload)
	sc.MinSize = sc.MaxSize + 1
	_, err := New(newFakeClient(t), sc, Options{})
	assert.Error(t, err)
}
