package harness

import (
	"time"

	"github.com/fruitsalade/renterprobe/internal/payload"
	"github.com/fruitsalade/renterprobe/pkg/client"
)

// Report is the outcome of one harness run.
type Report struct {
	RunID      string    `json:"runId"`
	Suite      string    `json:"suite"`
	BaseURL    string    `json:"baseUrl"`
	Seed       int64     `json:"seed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Passed     bool      `json:"passed"`

	// Expected holds every file path the multi-upload scenario wrote,
	// Missing those absent from the final listing, sorted.
	Expected []string `json:"expected,omitempty"`
	Missing  []string `json:"missing,omitempty"`

	Uploads int                     `json:"uploads"`
	Files   []payload.SyntheticFile `json:"files,omitempty"`
	Phases  []PhaseResult           `json:"phases"`
	Checks  []CheckResult           `json:"checks,omitempty"`
	Failure *Failure                `json:"failure,omitempty"`
}

// PhaseResult records one step of a run.
type PhaseResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	OK       bool          `json:"ok"`
}

// CheckResult records one property check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Failure describes the first error of a run. Endpoint, StatusCode and Body
// are set when the renter rejected a request.
type Failure struct {
	Phase      string `json:"phase"`
	Method     string `json:"method,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Body       string `json:"body,omitempty"`
	Message    string `json:"message"`
}

// Protocol reports whether the failure came from a renter response rather
// than the transport or a local step.
func (f *Failure) Protocol() bool {
	return f != nil && f.StatusCode != 0
}

// CheckPassed reports whether the named check ran and passed.
func (r *Report) CheckPassed(name string) bool {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Passed
		}
	}
	return false
}

func failureFrom(phase string, err error) *Failure {
	f := &Failure{Phase: phase, Message: err.Error()}
	if ae, ok := client.AsAPIError(err); ok {
		f.Method = ae.Method
		f.Endpoint = ae.Endpoint
		f.StatusCode = ae.StatusCode
		f.Body = string(ae.Body)
		f.Message = ae.Message()
	}
	return f
}
