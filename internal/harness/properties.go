package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fruitsalade/renterprobe/internal/logging"
	"github.com/fruitsalade/renterprobe/internal/payload"
	"github.com/fruitsalade/renterprobe/pkg/client"
	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/tree"
)

// violation is a property that did not hold, as opposed to a request that
// failed outright.
type violation struct{ msg string }

func (v *violation) Error() string { return v.msg }

func violated(format string, args ...any) error {
	return &violation{msg: fmt.Sprintf(format, args...)}
}

// rejected expects err to be a renter rejection of what. A transport error
// is passed through since it says nothing about the property.
func rejected(err error, what string) error {
	if err == nil {
		return violated("%s was accepted", what)
	}
	if _, ok := client.AsAPIError(err); ok {
		return nil
	}
	return err
}

type check struct {
	name string
	run  func(ctx context.Context) error
}

// propertyRun holds the state shared between the checks of one run. All
// entries live under a per-run working folder so repeated runs, and the
// multi-upload scenario, never collide.
type propertyRun struct {
	h    *Harness
	rep  *Report
	work string

	small payload.SyntheticFile
	large payload.SyntheticFile

	roundTrip *models.File
}

func (h *Harness) properties(ctx context.Context, rep *Report) error {
	p := &propertyRun{h: h, rep: rep, work: "checks-" + rep.RunID[:8]}

	err := h.phase(rep, "properties-setup", func() error { return p.setup(ctx) })
	if err != nil {
		return err
	}

	checks := []check{
		{"round-trip", p.checkRoundTrip},
		{"overwrite", p.checkOverwrite},
		{"hierarchy", p.checkHierarchy},
		{"reservation", p.checkReservation},
		{"removal", p.checkRemoval},
		{"rename", p.checkRename},
		{"download", p.checkDownload},
	}
	if h.opts.ShareWith != "" {
		checks = append(checks, check{"share", p.checkShare})
	}

	for _, c := range checks {
		err := h.phase(rep, "check:"+c.name, func() error { return c.run(ctx) })

		res := CheckResult{Name: c.name, Passed: err == nil}
		if err != nil {
			res.Detail = err.Error()
		}
		rep.Checks = append(rep.Checks, res)
		h.metrics.RecordCheck(c.name, res.Passed)

		if err != nil {
			var v *violation
			if errors.As(err, &v) {
				return fmt.Errorf("%w: %s: %s", ErrCheckFailed, c.name, v.msg)
			}
			return fmt.Errorf("%w: %s: %w", ErrCheckFailed, c.name, err)
		}
		h.logger.Info("check passed", logging.String("check", c.name))
	}
	return nil
}

func (p *propertyRun) setup(ctx context.Context) error {
	sc := p.h.scenario
	if _, err := p.h.client.ReserveSpace(ctx, sc.ReserveBytes); err != nil {
		return err
	}
	if _, err := p.h.client.CreateFolder(ctx, p.work); err != nil {
		return err
	}

	var err error
	dir := filepath.Join(p.h.opts.Dir, p.work)
	if p.small, err = payload.Generate(dir, "small.bin", sc.MinSize); err != nil {
		return fmt.Errorf("generate small.bin: %w", err)
	}
	if p.large, err = payload.Generate(dir, "large.bin", sc.MaxSize); err != nil {
		return fmt.Errorf("generate large.bin: %w", err)
	}
	p.rep.Files = append(p.rep.Files, p.small, p.large)
	return nil
}

func (p *propertyRun) path(name string) string {
	return tree.Join(p.work, name)
}

func (p *propertyRun) list(ctx context.Context) (map[string]struct{}, []models.File, error) {
	files, err := p.h.client.ListFiles(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tree.Names(files), files, nil
}

// checkRoundTrip: metadata read twice after an upload names the same entry
// and never loses versions.
func (p *propertyRun) checkRoundTrip(ctx context.Context) error {
	f, err := p.h.client.UploadFile(ctx, p.small.Path, p.path("roundtrip.bin"), nil)
	if err != nil {
		return err
	}
	p.roundTrip = f

	first, err := p.h.client.GetFile(ctx, f.ID)
	if err != nil {
		return err
	}
	second, err := p.h.client.GetFile(ctx, f.ID)
	if err != nil {
		return err
	}
	if first.ID != f.ID || second.ID != f.ID {
		return violated("get-metadata returned ids %q and %q for %q", first.ID, second.ID, f.ID)
	}
	if len(second.Versions) < len(first.Versions) {
		return violated("version count dropped from %d to %d", len(first.Versions), len(second.Versions))
	}
	return nil
}

// checkOverwrite: a collision needs an explicit overwrite, and an overwrite
// keeps a single listing entry for the path.
func (p *propertyRun) checkOverwrite(ctx context.Context) error {
	dest := p.path("roundtrip.bin")

	_, err := p.h.client.UploadFile(ctx, p.large.Path, dest, nil)
	if err := rejected(err, "upload onto an existing path without overwrite"); err != nil {
		return err
	}
	if _, err := p.h.client.UploadFile(ctx, p.large.Path, dest, &client.UploadOptions{Overwrite: client.Bool(true)}); err != nil {
		return err
	}

	_, files, err := p.list(ctx)
	if err != nil {
		return err
	}
	if n := tree.CountPath(files, dest); n != 1 {
		return violated("%d listing entries for %s after overwrite, want 1", n, dest)
	}
	return nil
}

// checkHierarchy: a file uploaded into a folder is listed under it only.
func (p *propertyRun) checkHierarchy(ctx context.Context) error {
	folder := p.path("hier")
	if _, err := p.h.client.CreateFolder(ctx, folder); err != nil {
		return err
	}
	dest := tree.Join(folder, "only.bin")
	if _, err := p.h.client.UploadFile(ctx, p.small.Path, dest, nil); err != nil {
		return err
	}

	names, _, err := p.list(ctx)
	if err != nil {
		return err
	}
	if _, ok := names[dest]; !ok {
		return violated("%s missing from listing", dest)
	}
	base := tree.Base(dest)
	for _, stray := range []string{base, p.path(base)} {
		if _, ok := names[stray]; ok {
			return violated("%s listed outside its folder as %s", dest, stray)
		}
	}
	return nil
}

// checkReservation: two further reservations grow the contract total by at
// least their sum.
func (p *propertyRun) checkReservation(ctx context.Context) error {
	const a, b = payload.MiB, 2 * payload.MiB
	before, err := p.contractTotal(ctx)
	if err != nil {
		return err
	}
	for _, amount := range []int64{a, b} {
		if _, err := p.h.client.ReserveSpace(ctx, amount); err != nil {
			return err
		}
	}
	after, err := p.contractTotal(ctx)
	if err != nil {
		return err
	}
	if after < before+a+b {
		return violated("contracts grew from %d to %d bytes after reserving %d", before, after, a+b)
	}
	return nil
}

func (p *propertyRun) contractTotal(ctx context.Context) (int64, error) {
	contracts, err := p.h.client.ListContracts(ctx)
	if err != nil {
		return 0, err
	}
	return models.TotalStorage(contracts), nil
}

// checkRemoval: a non-empty folder goes only with recursive removal, and
// takes its contents with it.
func (p *propertyRun) checkRemoval(ctx context.Context) error {
	folder := p.path("trash")
	f, err := p.h.client.CreateFolder(ctx, folder)
	if err != nil {
		return err
	}
	if _, err := p.h.client.UploadFile(ctx, p.small.Path, tree.Join(folder, "x.bin"), nil); err != nil {
		return err
	}

	err = p.h.client.RemoveFile(ctx, f.ID, nil)
	if err := rejected(err, "non-recursive removal of a non-empty folder"); err != nil {
		return err
	}
	if err := p.h.client.RemoveFile(ctx, f.ID, &client.RemoveOptions{Recursive: client.Bool(true)}); err != nil {
		return err
	}

	_, files, err := p.list(ctx)
	if err != nil {
		return err
	}
	if _, ok := tree.FindByPath(files, folder); ok {
		return violated("%s still listed after recursive removal", folder)
	}
	if left := tree.Descendants(files, folder); len(left) > 0 {
		return violated("%d entries left under %s", len(left), folder)
	}
	return nil
}

// checkRename: renames never clobber a sibling, and the new name sticks.
func (p *propertyRun) checkRename(ctx context.Context) error {
	src, err := p.h.client.UploadFile(ctx, p.small.Path, p.path("r1.bin"), nil)
	if err != nil {
		return err
	}
	if _, err := p.h.client.UploadFile(ctx, p.small.Path, p.path("r2.bin"), nil); err != nil {
		return err
	}

	_, err = p.h.client.RenameFile(ctx, src.ID, p.path("r2.bin"))
	if err := rejected(err, "rename onto an existing sibling"); err != nil {
		return err
	}

	want := p.path("renamed.bin")
	renamed, err := p.h.client.RenameFile(ctx, src.ID, want)
	if err != nil {
		return err
	}
	if renamed.Name != want {
		return violated("rename reported %q, want %q", renamed.Name, want)
	}
	names, files, err := p.list(ctx)
	if err != nil {
		return err
	}
	if _, ok := names[want]; !ok {
		return violated("%s missing from listing after rename", want)
	}
	if f, ok := tree.FindByID(files, src.ID); !ok || f.Name != want {
		return violated("entry %s is not listed as %s", src.ID, want)
	}
	return nil
}

// checkDownload: the latest version reads back as the last content uploaded.
func (p *propertyRun) checkDownload(ctx context.Context) error {
	if p.roundTrip == nil {
		return violated("nothing uploaded to download")
	}
	dest, err := filepath.Abs(filepath.Join(p.h.opts.Dir, p.work, "download.bin"))
	if err != nil {
		return err
	}
	if _, err := p.h.client.DownloadFile(ctx, p.roundTrip.ID, dest, nil); err != nil {
		return err
	}
	got, err := payload.DigestFile(dest)
	if err != nil {
		return err
	}
	if got != p.large.Digest {
		return violated("downloaded digest %s, want %s", got, p.large.Digest)
	}
	return nil
}

// checkShare: a share shows up on the file's access list.
func (p *propertyRun) checkShare(ctx context.Context) error {
	alias := p.h.opts.ShareWith
	f, err := p.h.client.UploadFile(ctx, p.small.Path, p.path("shared.bin"), nil)
	if err != nil {
		return err
	}
	if _, err := p.h.client.ShareFile(ctx, f.ID, alias); err != nil {
		return err
	}
	got, err := p.h.client.GetFile(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, perm := range got.AccessList {
		if perm.RenterAlias == alias {
			return nil
		}
	}
	return violated("%s missing from the access list of %s", alias, f.Name)
}
