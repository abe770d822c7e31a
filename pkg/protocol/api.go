// Package protocol defines the renter API request/response types.
//
// Optional request fields are pointers tagged omitempty: a nil pointer is left
// out of the JSON body entirely, so "unset" and "false" stay distinct on the
// wire.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/fruitsalade/renterprobe/pkg/models"
)

// Endpoint paths.
const (
	PathInfo             = "/info"
	PathReserveStorage   = "/reserve-storage"
	PathContracts        = "/contracts"
	PathFiles            = "/files"
	PathSharedFiles      = "/files/shared"
	PathUpload           = "/files/upload"
	PathGetMetadata      = "/files/get-metadata"
	PathDownload         = "/files/download"
	PathRename           = "/files/rename"
	PathCreateFolder     = "/files/create-folder"
	PathShare            = "/files/share"
	PathRemove           = "/files/remove"
	PathRemoveSharedFile = "/files/shared/remove"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error,omitempty"`
}

// ReserveStorageRequest is the body for POST /reserve-storage.
type ReserveStorageRequest struct {
	Amount int64 `json:"amount"`
}

// ContractsResponse is returned by POST /reserve-storage and GET /contracts.
type ContractsResponse struct {
	Contracts []models.Contract `json:"contracts"`
}

// UploadRequest is the body for POST /files/upload.
type UploadRequest struct {
	SourcePath      string `json:"sourcePath"`
	DestPath        string `json:"destPath"`
	ShouldOverwrite *bool  `json:"shouldOverwrite,omitempty"`
}

// GetMetadataRequest is the body for POST /files/get-metadata.
type GetMetadataRequest struct {
	FileID string `json:"fileId"`
}

// DownloadRequest is the body for POST /files/download.
type DownloadRequest struct {
	FileID     string `json:"fileId"`
	DestPath   string `json:"destPath"`
	VersionNum *int   `json:"versionNum,omitempty"`
}

// RenameRequest is the body for POST /files/rename.
type RenameRequest struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
}

// CreateFolderRequest is the body for POST /files/create-folder.
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// ShareRequest is the body for POST /files/share.
type ShareRequest struct {
	FileID      string `json:"fileId"`
	RenterAlias string `json:"renterAlias"`
}

// ShareResponse is returned by POST /files/share.
type ShareResponse struct {
	Message string `json:"message"`
}

// RemoveRequest is the body for POST /files/remove. The service spells the
// id field "fileID" on the remove endpoints only.
type RemoveRequest struct {
	FileID     string `json:"fileID"`
	VersionNum *int   `json:"versionNum,omitempty"`
	Recursive  *bool  `json:"recursive,omitempty"`
}

// RemoveSharedRequest is the body for POST /files/shared/remove.
type RemoveSharedRequest struct {
	FileID string `json:"fileID"`
}

// FilesResponse is returned by GET /files.
type FilesResponse struct {
	Files []models.File `json:"files"`
}

// SharedFilesResponse accepts both shapes the service has used for
// GET /files/shared: a bare array and a {"files": [...]} object.
type SharedFilesResponse struct {
	Files []models.File
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SharedFilesResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Files)
	}
	var wrapped FilesResponse
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	r.Files = wrapped.Files
	return nil
}
