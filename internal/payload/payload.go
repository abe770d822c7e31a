// Package payload creates the synthetic files uploaded by the harness.
package payload

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// ChunkSize is the size of one pattern block. Generated files are always a
// whole number of chunks long.
const ChunkSize = 1024

const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
)

// chunk is 1 KiB of "ABC...Z" repeated.
var chunk = func() []byte {
	b := make([]byte, ChunkSize)
	for i := range b {
		b[i] = byte('A' + i%26)
	}
	return b
}()

// SyntheticFile is a generated local file used as upload content.
type SyntheticFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// RandomSize draws a size uniformly from [min, max].
func RandomSize(rng *rand.Rand, min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + rng.Int63n(max-min+1)
}

// Generate writes a synthetic file called name into dir. The file holds
// size/ChunkSize copies of the pattern chunk, so any remainder below a full
// chunk is dropped. The file is closed before Generate returns.
func Generate(dir, name string, size int64) (SyntheticFile, error) {
	if size < 0 {
		return SyntheticFile{}, fmt.Errorf("negative size %d", size)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SyntheticFile{}, fmt.Errorf("create %s: %w", dir, err)
	}
	p, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return SyntheticFile{}, err
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return SyntheticFile{}, fmt.Errorf("create %s: %w", p, err)
	}

	h, _ := blake2b.New256(nil)
	w := io.MultiWriter(f, h)
	chunks := size / ChunkSize
	for i := int64(0); i < chunks; i++ {
		if _, err := w.Write(chunk); err != nil {
			f.Close()
			return SyntheticFile{}, fmt.Errorf("write %s: %w", p, err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return SyntheticFile{}, fmt.Errorf("sync %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return SyntheticFile{}, fmt.Errorf("close %s: %w", p, err)
	}

	return SyntheticFile{
		Name:   name,
		Path:   p,
		Size:   chunks * ChunkSize,
		Digest: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// DigestFile returns the hex blake2b-256 digest of the file at p.
func DigestFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
