// Package models contains the renter data types shared by the client, the
// harness and the fake renter service.
package models

import "time"

// File represents a file or folder in the renter namespace. Name is the
// full slash-delimited path of the entry.
type File struct {
	ID         string       `json:"id"`
	OwnerID    string       `json:"ownerId"`
	Name       string       `json:"name"`
	IsDir      bool         `json:"isDir"`
	AccessList []Permission `json:"accessList"`
	Versions   []Version    `json:"versions"`
}

// LatestVersion returns the most recent version, or nil for folders and
// files without versions.
func (f *File) LatestVersion() *Version {
	if f == nil || len(f.Versions) == 0 {
		return nil
	}
	latest := &f.Versions[0]
	for i := range f.Versions {
		if f.Versions[i].Num > latest.Num {
			latest = &f.Versions[i]
		}
	}
	return latest
}

// Size returns the size of the latest version in bytes.
func (f *File) Size() int64 {
	if v := f.LatestVersion(); v != nil {
		return v.Size
	}
	return 0
}

// FindVersion returns the version with the given number.
func (f *File) FindVersion(num int) (*Version, bool) {
	for i := range f.Versions {
		if f.Versions[i].Num == num {
			return &f.Versions[i], true
		}
	}
	return nil, false
}

// Version is a single historical upload of a file.
type Version struct {
	Num             int       `json:"num"`
	Size            int64     `json:"size"`
	ModTime         time.Time `json:"modTime"`
	UploadSize      int64     `json:"uploadSize"`
	PaddingBytes    int64     `json:"paddingBytes"`
	NumDataBlocks   int       `json:"numDataBlocks"`
	NumParityBlocks int       `json:"numParityBlocks"`
	Blocks          []Block   `json:"blocks"`
}

// Block describes where a piece of a version is stored.
type Block struct {
	ID         string        `json:"id"`
	Num        int           `json:"num"`
	Size       int64         `json:"size"`
	Sha256Hash string        `json:"sha256hash"`
	Location   BlockLocation `json:"location"`
}

// BlockLocation identifies the provider holding a block.
type BlockLocation struct {
	ProviderID string `json:"providerId"`
	Addr       string `json:"address"`
	ContractID string `json:"contractId"`
}

// Permission grants a non-owning renter read access to a file.
type Permission struct {
	RenterID    string `json:"renterId"`
	RenterAlias string `json:"renterAlias"`
}

// Share is the client-side view of a (file, grantee) share relation.
type Share struct {
	FileID      string `json:"fileId"`
	RenterAlias string `json:"renterAlias"`
}

// Contract is a unit of storage capacity reserved with a provider.
// StorageSpace is the reserved amount in bytes.
type Contract struct {
	ID                string `json:"contractId"`
	RenterID          string `json:"renterId"`
	ProviderID        string `json:"providerId"`
	StorageSpace      int64  `json:"storageSpace"`
	RenterSignature   string `json:"renterSignature"`
	ProviderSignature string `json:"providerSignature"`
}

// TotalStorage sums the reserved capacity of the given contracts.
func TotalStorage(contracts []Contract) int64 {
	var total int64
	for _, c := range contracts {
		total += c.StorageSpace
	}
	return total
}

// RenterInfo is the service metadata returned by GET /info.
type RenterInfo struct {
	ID              string `json:"id"`
	Alias           string `json:"alias"`
	APIAddr         string `json:"apiAddress"`
	HomeDir         string `json:"homedir"`
	ReservedStorage int64  `json:"reservedStorage"`
	FreeStorage     int64  `json:"freeStorage"`
	UsedStorage     int64  `json:"usedStorage"`
	TotalContracts  int    `json:"totalContracts"`
	TotalFiles      int    `json:"totalFiles"`
}

// DownloadInfo reports what a download wrote to the local filesystem.
type DownloadInfo struct {
	Files []DownloadedFile `json:"files"`
}

// DownloadedFile is a single entry of a DownloadInfo.
type DownloadedFile struct {
	FileID     string            `json:"fileId"`
	Name       string            `json:"name"`
	IsDir      bool              `json:"isDir"`
	DestPath   string            `json:"destPath"`
	VersionNum *int              `json:"versionNum,omitempty"`
	Blocks     []DownloadedBlock `json:"blocks"`
}

// DownloadedBlock records which provider served a block.
type DownloadedBlock struct {
	BlockID   string        `json:"blockId"`
	Location  BlockLocation `json:"location"`
	TotalTime string        `json:"totalTime,omitempty"`
}
