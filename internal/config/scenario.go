package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Suites the harness can run.
const (
	SuiteMultiUpload = "multi-upload"
	SuiteProperties  = "properties"
	SuiteAll         = "all"
)

func validSuite(s string) bool {
	switch s {
	case SuiteMultiUpload, SuiteProperties, SuiteAll:
		return true
	}
	return false
}

const (
	kib int64 = 1024
	mib       = 1024 * kib
	gib       = 1024 * mib
)

// Scenario describes the workload driven through the renter.
type Scenario struct {
	Suite        string
	Files        []string
	Folders      []string
	ReserveBytes int64
	MinSize      int64
	MaxSize      int64
}

// DefaultScenario is the multi-upload workload: three files at the root and
// copies of each inside three top-level folders.
func DefaultScenario() Scenario {
	return Scenario{
		Suite:        SuiteMultiUpload,
		Files:        []string{"a.txt", "b.txt", "c.txt"},
		Folders:      []string{"school", "work", "pics"},
		ReserveBytes: 1 * gib,
		MinSize:      1 * mib,
		MaxSize:      10 * mib,
	}
}

// LoadScenario reads the [scenario] section of an INI file on top of the
// defaults. Lists are comma separated:
//
//	[scenario]
//	suite         = all
//	files         = a.txt, b.txt
//	folders       = school, work
//	reserve_bytes = 1073741824
//	min_size      = 1048576
//	max_size      = 10485760
func LoadScenario(path string) (Scenario, error) {
	sc := DefaultScenario()
	if path == "" {
		return sc, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return sc, fmt.Errorf("load scenario %s: %w", path, err)
	}
	sec := f.Section("scenario")

	if k := sec.Key("suite"); k.String() != "" {
		sc.Suite = k.String()
	}
	if k := sec.Key("files"); k.String() != "" {
		sc.Files = splitList(k.String())
	}
	if sec.HasKey("folders") {
		sc.Folders = splitList(sec.Key("folders").String())
	}
	if sc.ReserveBytes, err = int64Key(sec, "reserve_bytes", sc.ReserveBytes); err != nil {
		return sc, err
	}
	if sc.MinSize, err = int64Key(sec, "min_size", sc.MinSize); err != nil {
		return sc, err
	}
	if sc.MaxSize, err = int64Key(sec, "max_size", sc.MaxSize); err != nil {
		return sc, err
	}

	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Validate checks the scenario for inconsistent values.
func (s Scenario) Validate() error {
	if !validSuite(s.Suite) {
		return fmt.Errorf("unknown suite %q", s.Suite)
	}
	if len(s.Files) == 0 {
		return fmt.Errorf("at least one file name is required")
	}
	if s.ReserveBytes <= 0 {
		return fmt.Errorf("reserve_bytes must be positive")
	}
	if s.MinSize <= 0 || s.MaxSize <= 0 {
		return fmt.Errorf("file sizes must be positive")
	}
	if s.MinSize > s.MaxSize {
		return fmt.Errorf("min_size %d exceeds max_size %d", s.MinSize, s.MaxSize)
	}

	// Files and folders share one namespace.
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, s.Files...), s.Folders...) {
		if name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("invalid name %q: names must be non-empty and contain no '/'", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate name %q", name)
		}
		seen[name] = true
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func int64Key(sec *ini.Section, name string, fallback int64) (int64, error) {
	if !sec.HasKey(name) {
		return fallback, nil
	}
	v, err := sec.Key(name).Int64()
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
