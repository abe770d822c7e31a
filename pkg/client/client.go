// Package client provides a typed HTTP client for the renter API.
//
// Every method issues exactly one request. The client does not retry, log or
// cache anything: a non-success status becomes an *APIError, and transport
// failures are returned as produced by net/http.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/protocol"
)

// Client is a renter API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds a whole request. Zero means no client-side timeout.
	Timeout time.Duration
	// HTTPClient, when set, is used as is and Timeout is ignored.
	HTTPClient *http.Client
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, invalidArgument("base URL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{baseURL: base, httpClient: hc}, nil
}

// BaseURL returns the renter API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadOptions holds the optional upload parameters. A nil Overwrite leaves
// the decision to the service, which rejects path collisions.
type UploadOptions struct {
	Overwrite *bool
}

// DownloadOptions holds the optional download parameters. A nil VersionNum
// fetches the latest version.
type DownloadOptions struct {
	VersionNum *int
}

// RemoveOptions holds the optional remove parameters. VersionNum removes a
// single version; Recursive is required to remove a non-empty folder.
type RemoveOptions struct {
	VersionNum *int
	Recursive  *bool
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// GetInfo returns the renter's service metadata.
func (c *Client) GetInfo(ctx context.Context) (*models.RenterInfo, error) {
	var info models.RenterInfo
	if err := c.do(ctx, http.MethodGet, protocol.PathInfo, nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ReserveSpace reserves amount bytes of storage and returns the contracts
// formed for it.
func (c *Client) ReserveSpace(ctx context.Context, amount int64) ([]models.Contract, error) {
	if amount <= 0 {
		return nil, invalidArgument("reserve amount must be positive, got %d", amount)
	}
	var resp protocol.ContractsResponse
	req := protocol.ReserveStorageRequest{Amount: amount}
	if err := c.do(ctx, http.MethodPost, protocol.PathReserveStorage, req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// ListContracts returns every contract the renter holds.
func (c *Client) ListContracts(ctx context.Context) ([]models.Contract, error) {
	var resp protocol.ContractsResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathContracts, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// UploadFile uploads the local file or folder at source to the namespace
// path dest.
func (c *Client) UploadFile(ctx context.Context, source, dest string, opts *UploadOptions) (*models.File, error) {
	if source == "" || dest == "" {
		return nil, invalidArgument("upload needs source and destination paths")
	}
	req := protocol.UploadRequest{SourcePath: source, DestPath: dest}
	if opts != nil {
		req.ShouldOverwrite = opts.Overwrite
	}
	var f models.File
	if err := c.do(ctx, http.MethodPost, protocol.PathUpload, req, http.StatusCreated, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFile fetches the metadata of a file, including its versions.
func (c *Client) GetFile(ctx context.Context, fileID string) (*models.File, error) {
	if fileID == "" {
		return nil, invalidArgument("file id is required")
	}
	var f models.File
	req := protocol.GetMetadataRequest{FileID: fileID}
	if err := c.do(ctx, http.MethodPost, protocol.PathGetMetadata, req, http.StatusOK, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile downloads a file to the local path destination.
func (c *Client) DownloadFile(ctx context.Context, fileID, destination string, opts *DownloadOptions) (*models.DownloadInfo, error) {
	if fileID == "" || destination == "" {
		return nil, invalidArgument("download needs a file id and a destination")
	}
	req := protocol.DownloadRequest{FileID: fileID, DestPath: destination}
	if opts != nil {
		req.VersionNum = opts.VersionNum
	}
	var info models.DownloadInfo
	if err := c.do(ctx, http.MethodPost, protocol.PathDownload, req, http.StatusCreated, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RenameFile moves a file or folder to a new namespace path.
func (c *Client) RenameFile(ctx context.Context, fileID, name string) (*models.File, error) {
	if fileID == "" || name == "" {
		return nil, invalidArgument("rename needs a file id and a name")
	}
	var f models.File
	req := protocol.RenameRequest{FileID: fileID, Name: name}
	if err := c.do(ctx, http.MethodPost, protocol.PathRename, req, http.StatusOK, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFolder creates an empty folder at the namespace path name.
func (c *Client) CreateFolder(ctx context.Context, name string) (*models.File, error) {
	if name == "" {
		return nil, invalidArgument("folder name is required")
	}
	var f models.File
	req := protocol.CreateFolderRequest{Name: name}
	if err := c.do(ctx, http.MethodPost, protocol.PathCreateFolder, req, http.StatusCreated, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ShareFile grants the renter known as renterAlias read access to a file.
func (c *Client) ShareFile(ctx context.Context, fileID, renterAlias string) (*protocol.ShareResponse, error) {
	if fileID == "" || renterAlias == "" {
		return nil, invalidArgument("share needs a file id and a renter alias")
	}
	var resp protocol.ShareResponse
	req := protocol.ShareRequest{FileID: fileID, RenterAlias: renterAlias}
	if err := c.do(ctx, http.MethodPost, protocol.PathShare, req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveFile removes a file, a single version of it, or a folder.
func (c *Client) RemoveFile(ctx context.Context, fileID string, opts *RemoveOptions) error {
	if fileID == "" {
		return invalidArgument("file id is required")
	}
	req := protocol.RemoveRequest{FileID: fileID}
	if opts != nil {
		req.VersionNum = opts.VersionNum
		req.Recursive = opts.Recursive
	}
	return c.do(ctx, http.MethodPost, protocol.PathRemove, req, http.StatusOK, nil)
}

// RemoveSharedFile drops a file shared with this renter from its shared list.
func (c *Client) RemoveSharedFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return invalidArgument("file id is required")
	}
	req := protocol.RemoveSharedRequest{FileID: fileID}
	return c.do(ctx, http.MethodPost, protocol.PathRemoveSharedFile, req, http.StatusOK, nil)
}

// ListFiles returns every file and folder in the namespace as a flat list.
func (c *Client) ListFiles(ctx context.Context) ([]models.File, error) {
	var resp protocol.FilesResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathFiles, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// ListSharedFiles returns the files other renters have shared with this one.
func (c *Client) ListSharedFiles(ctx context.Context) ([]models.File, error) {
	var resp protocol.SharedFilesResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathSharedFiles, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// do sends one request and decodes the response into out when the status
// equals want.
func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode != want {
		return newAPIError(method, path, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
