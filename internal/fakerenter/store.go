package fakerenter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/tree"
)

// Errors returned by Store. The server maps them to status codes.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrNoSpace    = errors.New("insufficient reserved storage")
)

// entry is a namespace entry plus the local source of each version, which
// download copies back out.
type entry struct {
	file    models.File
	sources map[int]string
}

// Store is an in-memory renter namespace. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	renterID string
	alias    string
	peers    map[string]string // alias -> renter id

	entries   map[string]*entry // id -> entry
	byPath    map[string]string // path -> id
	contracts []models.Contract
	shared    []models.File

	now func() time.Time
}

// NewStore creates an empty store for the renter known as alias. peers lists
// the aliases of the other renters files can be shared with.
func NewStore(alias string, peers ...string) *Store {
	s := &Store{
		renterID: uuid.NewString(),
		alias:    alias,
		peers:    make(map[string]string),
		entries:  make(map[string]*entry),
		byPath:   make(map[string]string),
		now:      time.Now,
	}
	for _, p := range peers {
		s.peers[p] = uuid.NewString()
	}
	return s
}

// Info returns the renter's service metadata.
func (s *Store) Info() models.RenterInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	reserved := models.TotalStorage(s.contracts)
	used := s.usedLocked()
	files := 0
	for _, e := range s.entries {
		if !e.file.IsDir {
			files++
		}
	}
	return models.RenterInfo{
		ID:              s.renterID,
		Alias:           s.alias,
		ReservedStorage: reserved,
		FreeStorage:     reserved - used,
		UsedStorage:     used,
		TotalContracts:  len(s.contracts),
		TotalFiles:      files,
	}
}

// ReserveStorage forms one contract for amount bytes.
func (s *Store) ReserveStorage(amount int64) ([]models.Contract, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := models.Contract{
		ID:           uuid.NewString(),
		RenterID:     s.renterID,
		ProviderID:   "fake-provider",
		StorageSpace: amount,
	}
	s.contracts = append(s.contracts, c)
	return []models.Contract{c}, nil
}

// Contracts returns every contract formed so far.
func (s *Store) Contracts() []models.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Contract(nil), s.contracts...)
}

// Upload adds the local file or folder at source to the namespace at dest.
// An existing file at dest gains a new version only when overwrite is true.
func (s *Store) Upload(source, dest string, overwrite *bool) (models.File, error) {
	dest = tree.Clean(dest)
	if source == "" || dest == "" {
		return models.File{}, fmt.Errorf("%w: sourcePath and destPath are required", ErrBadRequest)
	}
	st, err := os.Stat(source)
	if err != nil {
		return models.File{}, fmt.Errorf("%w: cannot stat source: %v", ErrBadRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st.IsDir() {
		return s.uploadDirLocked(source, dest)
	}

	if id, ok := s.byPath[dest]; ok {
		e := s.entries[id]
		if overwrite == nil || !*overwrite {
			return models.File{}, fmt.Errorf("%w: %s already exists", ErrConflict, dest)
		}
		if e.file.IsDir {
			return models.File{}, fmt.Errorf("%w: %s is a folder", ErrConflict, dest)
		}
		if err := s.checkSpaceLocked(st.Size()); err != nil {
			return models.File{}, err
		}
		num := 0
		if v := e.file.LatestVersion(); v != nil {
			num = v.Num + 1
		}
		e.file.Versions = append(e.file.Versions, s.newVersion(num, st.Size()))
		e.sources[num] = source
		return cloneFile(e.file), nil
	}

	if err := s.checkParentLocked(dest); err != nil {
		return models.File{}, err
	}
	if err := s.checkSpaceLocked(st.Size()); err != nil {
		return models.File{}, err
	}
	e := s.insertLocked(dest, false)
	e.file.Versions = []models.Version{s.newVersion(0, st.Size())}
	e.sources[0] = source
	return cloneFile(e.file), nil
}

func (s *Store) uploadDirLocked(source, dest string) (models.File, error) {
	if _, ok := s.byPath[dest]; ok {
		return models.File{}, fmt.Errorf("%w: %s already exists", ErrConflict, dest)
	}
	if err := s.checkParentLocked(dest); err != nil {
		return models.File{}, err
	}

	type pending struct {
		path   string
		source string
		isDir  bool
		size   int64
	}
	var (
		items []pending
		total int64
	)
	err := filepath.Walk(source, func(p string, info os.FileInfo, err error) error {
		if err != nil || p == source {
			return err
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		it := pending{path: tree.Join(dest, filepath.ToSlash(rel)), source: p, isDir: info.IsDir()}
		if !it.isDir {
			it.size = info.Size()
			total += it.size
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return models.File{}, fmt.Errorf("%w: walk source: %v", ErrBadRequest, err)
	}
	if err := s.checkSpaceLocked(total); err != nil {
		return models.File{}, err
	}

	// Nothing is inserted until the whole tree has been read.
	root := s.insertLocked(dest, true)
	for _, it := range items {
		e := s.insertLocked(it.path, it.isDir)
		if !it.isDir {
			e.file.Versions = []models.Version{s.newVersion(0, it.size)}
			e.sources[0] = it.source
		}
	}
	return cloneFile(root.file), nil
}

// CreateFolder creates an empty folder at name.
func (s *Store) CreateFolder(name string) (models.File, error) {
	name = tree.Clean(name)
	if name == "" {
		return models.File{}, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPath[name]; ok {
		return models.File{}, fmt.Errorf("%w: %s already exists", ErrConflict, name)
	}
	if err := s.checkParentLocked(name); err != nil {
		return models.File{}, err
	}
	return cloneFile(s.insertLocked(name, true).file), nil
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.File{}, fmt.Errorf("%w: no file with id %s", ErrNotFound, id)
	}
	return cloneFile(e.file), nil
}

// List returns every entry sorted by path.
func (s *Store) List() []models.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]models.File, 0, len(s.entries))
	for _, e := range s.entries {
		files = append(files, cloneFile(e.file))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Rename moves an entry, and everything under it for folders, to name.
func (s *Store) Rename(id, name string) (models.File, error) {
	name = tree.Clean(name)
	if name == "" {
		return models.File{}, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return models.File{}, fmt.Errorf("%w: no file with id %s", ErrNotFound, id)
	}
	old := e.file.Name
	if name == old {
		return cloneFile(e.file), nil
	}
	if _, taken := s.byPath[name]; taken {
		return models.File{}, fmt.Errorf("%w: %s already exists", ErrConflict, name)
	}
	if tree.IsUnder(name, old) {
		return models.File{}, fmt.Errorf("%w: cannot move %s under itself", ErrBadRequest, old)
	}
	if err := s.checkParentLocked(name); err != nil {
		return models.File{}, err
	}

	for p, eid := range s.byPath {
		if p == old || tree.IsUnder(p, old) {
			delete(s.byPath, p)
			moved := s.entries[eid]
			moved.file.Name = tree.Rebase(p, old, name)
		}
	}
	for eid, moved := range s.entries {
		if moved.file.Name == name || tree.IsUnder(moved.file.Name, name) {
			s.byPath[moved.file.Name] = eid
		}
	}
	return cloneFile(e.file), nil
}

// Share grants the peer known as alias access to the file.
func (s *Store) Share(id, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: no file with id %s", ErrNotFound, id)
	}
	peerID, ok := s.peers[alias]
	if !ok {
		return fmt.Errorf("%w: unknown renter %s", ErrBadRequest, alias)
	}
	for _, p := range e.file.AccessList {
		if p.RenterAlias == alias {
			return nil
		}
	}
	e.file.AccessList = append(e.file.AccessList, models.Permission{RenterID: peerID, RenterAlias: alias})
	return nil
}

// Remove deletes an entry, one of its versions, or a folder tree.
func (s *Store) Remove(id string, versionNum *int, recursive *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: no file with id %s", ErrNotFound, id)
	}

	if versionNum != nil {
		if e.file.IsDir {
			return fmt.Errorf("%w: folders have no versions", ErrBadRequest)
		}
		idx := -1
		for i, v := range e.file.Versions {
			if v.Num == *versionNum {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: no version %d", ErrNotFound, *versionNum)
		}
		if len(e.file.Versions) == 1 {
			return fmt.Errorf("%w: cannot remove the only version", ErrConflict)
		}
		e.file.Versions = append(e.file.Versions[:idx], e.file.Versions[idx+1:]...)
		delete(e.sources, *versionNum)
		return nil
	}

	var children []string
	for p, cid := range s.byPath {
		if tree.IsUnder(p, e.file.Name) {
			children = append(children, cid)
		}
	}
	if len(children) > 0 && (recursive == nil || !*recursive) {
		return fmt.Errorf("%w: folder %s is not empty", ErrConflict, e.file.Name)
	}
	for _, cid := range children {
		s.deleteLocked(cid)
	}
	s.deleteLocked(id)
	return nil
}

// AddSharedFile records a file another renter shared with this one.
func (s *Store) AddSharedFile(f models.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = append(s.shared, cloneFile(f))
}

// SharedFiles lists the files shared with this renter.
func (s *Store) SharedFiles() []models.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.File, 0, len(s.shared))
	for _, f := range s.shared {
		out = append(out, cloneFile(f))
	}
	return out
}

// RemoveSharedFile drops a file from the shared list.
func (s *Store) RemoveSharedFile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.shared {
		if f.ID == id {
			s.shared = append(s.shared[:i], s.shared[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: no shared file with id %s", ErrNotFound, id)
}

// Download copies an entry out to destPath: the requested (or latest)
// version for files, the whole tree for folders.
func (s *Store) Download(id, destPath string, versionNum *int) (models.DownloadInfo, error) {
	if destPath == "" {
		return models.DownloadInfo{}, fmt.Errorf("%w: destPath is required", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return models.DownloadInfo{}, fmt.Errorf("%w: no file with id %s", ErrNotFound, id)
	}

	if !e.file.IsDir {
		df, err := s.downloadFileLocked(e, destPath, versionNum)
		if err != nil {
			return models.DownloadInfo{}, err
		}
		return models.DownloadInfo{Files: []models.DownloadedFile{df}}, nil
	}
	if versionNum != nil {
		return models.DownloadInfo{}, fmt.Errorf("%w: folders have no versions", ErrBadRequest)
	}

	info := models.DownloadInfo{}
	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return info, fmt.Errorf("create %s: %w", destPath, err)
	}
	info.Files = append(info.Files, models.DownloadedFile{
		FileID: e.file.ID, Name: e.file.Name, IsDir: true, DestPath: destPath,
	})
	for p, cid := range s.byPath {
		if !tree.IsUnder(p, e.file.Name) {
			continue
		}
		child := s.entries[cid]
		rel := filepath.FromSlash(p[len(e.file.Name)+1:])
		out := filepath.Join(destPath, rel)
		if child.file.IsDir {
			if err := os.MkdirAll(out, 0o755); err != nil {
				return info, fmt.Errorf("create %s: %w", out, err)
			}
			info.Files = append(info.Files, models.DownloadedFile{
				FileID: child.file.ID, Name: child.file.Name, IsDir: true, DestPath: out,
			})
			continue
		}
		df, err := s.downloadFileLocked(child, out, nil)
		if err != nil {
			return info, err
		}
		info.Files = append(info.Files, df)
	}
	return info, nil
}

func (s *Store) downloadFileLocked(e *entry, destPath string, versionNum *int) (models.DownloadedFile, error) {
	v := e.file.LatestVersion()
	if versionNum != nil {
		found, ok := e.file.FindVersion(*versionNum)
		if !ok {
			return models.DownloadedFile{}, fmt.Errorf("%w: no version %d", ErrNotFound, *versionNum)
		}
		v = found
	}
	if v == nil {
		return models.DownloadedFile{}, fmt.Errorf("%w: %s has no versions", ErrNotFound, e.file.Name)
	}
	if err := copyFile(e.sources[v.Num], destPath); err != nil {
		return models.DownloadedFile{}, err
	}
	num := v.Num
	return models.DownloadedFile{
		FileID:     e.file.ID,
		Name:       e.file.Name,
		DestPath:   destPath,
		VersionNum: &num,
	}, nil
}

func (s *Store) insertLocked(p string, isDir bool) *entry {
	e := &entry{
		file: models.File{
			ID:         uuid.NewString(),
			OwnerID:    s.renterID,
			Name:       p,
			IsDir:      isDir,
			AccessList: []models.Permission{},
			Versions:   []models.Version{},
		},
		sources: make(map[int]string),
	}
	s.entries[e.file.ID] = e
	s.byPath[p] = e.file.ID
	return e
}

func (s *Store) deleteLocked(id string) {
	if e, ok := s.entries[id]; ok {
		delete(s.byPath, e.file.Name)
		delete(s.entries, id)
	}
}

func (s *Store) checkParentLocked(p string) error {
	parent := tree.Parent(p)
	if parent == "" {
		return nil
	}
	id, ok := s.byPath[parent]
	if !ok {
		return fmt.Errorf("%w: parent folder %s does not exist", ErrBadRequest, parent)
	}
	if !s.entries[id].file.IsDir {
		return fmt.Errorf("%w: parent %s is not a folder", ErrBadRequest, parent)
	}
	return nil
}

func (s *Store) checkSpaceLocked(size int64) error {
	free := models.TotalStorage(s.contracts) - s.usedLocked()
	if size > free {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrNoSpace, size, free)
	}
	return nil
}

func (s *Store) usedLocked() int64 {
	var used int64
	for _, e := range s.entries {
		for _, v := range e.file.Versions {
			used += v.Size
		}
	}
	return used
}

func (s *Store) newVersion(num int, size int64) models.Version {
	return models.Version{
		Num:           num,
		Size:          size,
		ModTime:       s.now().UTC(),
		UploadSize:    size,
		NumDataBlocks: 1,
	}
}

func cloneFile(f models.File) models.File {
	f.AccessList = append([]models.Permission{}, f.AccessList...)
	f.Versions = append([]models.Version{}, f.Versions...)
	return f
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
