// Package fakerenter is an in-memory renter service speaking the renter HTTP
// API. It backs the harness tests and local smoke runs of renter-probe.
package fakerenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fruitsalade/renterprobe/internal/logging"
	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/protocol"
)

// Server serves a Store over HTTP.
type Server struct {
	store  *Store
	router *mux.Router
	logger *zap.Logger
}

// NewServer routes the renter API to store. A nil logger disables request
// logging.
func NewServer(store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, router: mux.NewRouter(), logger: logger}
	s.setupRoutes()
	return s
}

// Store returns the backing store, for seeding shared files in tests.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return logging.Middleware(s.logger)(s.router)
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc(protocol.PathInfo, s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc(protocol.PathReserveStorage, s.handleReserveStorage).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathContracts, s.handleContracts).Methods(http.MethodGet)

	r.HandleFunc(protocol.PathFiles, s.handleListFiles).Methods(http.MethodGet)
	r.HandleFunc(protocol.PathSharedFiles, s.handleListSharedFiles).Methods(http.MethodGet)
	r.HandleFunc(protocol.PathUpload, s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathGetMetadata, s.handleGetMetadata).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathDownload, s.handleDownload).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathRename, s.handleRename).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathCreateFolder, s.handleCreateFolder).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathShare, s.handleShare).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathRemove, s.handleRemove).Methods(http.MethodPost)
	r.HandleFunc(protocol.PathRemoveSharedFile, s.handleRemoveSharedFile).Methods(http.MethodPost)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := s.store.Info()
	info.APIAddr = r.Host
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReserveStorage(w http.ResponseWriter, r *http.Request) {
	var req protocol.ReserveStorageRequest
	if !decode(w, r, &req) {
		return
	}
	contracts, err := s.store.ReserveStorage(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, protocol.ContractsResponse{Contracts: contracts})
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.ContractsResponse{Contracts: s.store.Contracts()})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.FilesResponse{Files: s.store.List()})
}

func (s *Server) handleListSharedFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.FilesResponse{Files: s.store.SharedFiles()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req protocol.UploadRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := s.store.Upload(req.SourcePath, req.DestPath, req.ShouldOverwrite)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	var req protocol.GetMetadataRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := s.store.Get(req.FileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req protocol.DownloadRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := s.store.Download(req.FileID, req.DestPath, req.VersionNum)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenameRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := s.store.Rename(req.FileID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateFolderRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := s.store.CreateFolder(req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req protocol.ShareRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.store.Share(req.FileID, req.RenterAlias); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.ShareResponse{Message: "file shared with " + req.RenterAlias})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req protocol.RemoveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.FileID == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "fileID is required"})
		return
	}
	if err := s.store.Remove(req.FileID, req.VersionNum, req.Recursive); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRemoveSharedFile(w http.ResponseWriter, r *http.Request) {
	var req protocol.RemoveSharedRequest
	if !decode(w, r, &req) {
		return
	}
	if req.FileID == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "fileID is required"})
		return
	}
	if err := s.store.RemoveSharedFile(req.FileID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// writeError maps store errors onto status codes. Conflicts and storage
// exhaustion surface as 500 the way the renter service reports them.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context()).Warn("request rejected", logging.Err(err))
	}
	writeJSON(w, status, protocol.ErrorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SharedFile builds a file entry owned by another renter, for AddSharedFile.
func SharedFile(id, ownerID, name string, size int64) models.File {
	return models.File{
		ID:         id,
		OwnerID:    ownerID,
		Name:       name,
		AccessList: []models.Permission{},
		Versions:   []models.Version{{Num: 0, Size: size, UploadSize: size, NumDataBlocks: 1}},
	}
}
