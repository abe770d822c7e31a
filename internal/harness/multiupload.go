package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/fruitsalade/renterprobe/internal/logging"
	"github.com/fruitsalade/renterprobe/internal/payload"
	"github.com/fruitsalade/renterprobe/pkg/tree"
)

// multiUpload reserves space, uploads every scenario file at the root and
// again inside every scenario folder, then checks one listing for all of
// them. The first error ends the run.
func (h *Harness) multiUpload(ctx context.Context, rep *Report) error {
	sc := h.scenario

	err := h.phase(rep, "reserve", func() error {
		_, err := h.client.ReserveSpace(ctx, sc.ReserveBytes)
		return err
	})
	if err != nil {
		return err
	}

	files := make([]payload.SyntheticFile, 0, len(sc.Files))
	err = h.phase(rep, "upload-files", func() error {
		for _, name := range sc.Files {
			sf, err := payload.Generate(h.opts.Dir, name, payload.RandomSize(h.rng, sc.MinSize, sc.MaxSize))
			if err != nil {
				return fmt.Errorf("generate %s: %w", name, err)
			}
			files = append(files, sf)
			rep.Files = append(rep.Files, sf)

			if err := h.upload(ctx, rep, sf, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = h.phase(rep, "create-folders", func() error {
		for _, folder := range sc.Folders {
			if _, err := h.client.CreateFolder(ctx, folder); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = h.phase(rep, "upload-nested", func() error {
		for _, folder := range sc.Folders {
			for _, sf := range files {
				if err := h.upload(ctx, rep, sf, tree.Join(folder, sf.Name)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	rep.Expected = expectedPaths(sc.Files, sc.Folders)
	return h.phase(rep, "verify", func() error {
		listing, err := h.client.ListFiles(ctx)
		if err != nil {
			return err
		}
		rep.Missing = tree.Missing(tree.Names(listing), rep.Expected)
		if len(rep.Missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingPaths, strings.Join(rep.Missing, ", "))
		}
		return nil
	})
}

func (h *Harness) upload(ctx context.Context, rep *Report, sf payload.SyntheticFile, dest string) error {
	_, err := h.client.UploadFile(ctx, sf.Path, dest, nil)
	h.metrics.RecordUpload(sf.Size, err)
	if err != nil {
		return err
	}
	rep.Uploads++
	h.logger.Debug("uploaded",
		logging.String("dest", dest),
		logging.Int64("size", sf.Size),
	)
	return nil
}

// expectedPaths lists the root files and every folder/file pair. Folder
// entries themselves are not required in the listing.
func expectedPaths(files, folders []string) []string {
	out := make([]string, 0, len(files)*(len(folders)+1))
	out = append(out, files...)
	for _, folder := range folders {
		for _, f := range files {
			out = append(out, tree.Join(folder, f))
		}
	}
	return out
}
