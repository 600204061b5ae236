package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

const (
	ipfsName = "ipfs"
	// defaultIPFSAPI is the local daemon's RPC endpoint.
	defaultIPFSAPI = "http://127.0.0.1:5001"
)

// IPFS pins blobs through a local IPFS daemon's HTTP API. It is the
// unlimited fallback sink; content addressing doubles as integrity.
type IPFS struct {
	APIBase string
	Client  *http.Client
}

// NewIPFS builds the provider against the local daemon.
func NewIPFS(apiBase string) *IPFS {
	if apiBase == "" {
		apiBase = defaultIPFSAPI
	}
	return &IPFS{
		APIBase: apiBase,
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *IPFS) Name() string { return ipfsName }

func (p *IPFS) Available(ctx context.Context, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIBase+"/api/v0/version", nil)
	if err != nil {
		return errors.IO("building version request", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return errors.ProviderUnavailable(ipfsName, "no IPFS daemon at "+p.APIBase)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.ProviderUnavailable(ipfsName,
			fmt.Sprintf("daemon answered %d", resp.StatusCode))
	}
	return nil
}

// Upload adds and pins the blob; the record location is the CID.
func (p *IPFS) Upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, errors.Encoding("building multipart body", err)
	}
	if _, err := part.Write(blob); err != nil {
		return nil, errors.Encoding("building multipart body", err)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Encoding("building multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.APIBase+"/api/v0/add?pin=true", &body)
	if err != nil {
		return nil, errors.IO("building add request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.ProviderUnavailable(ipfsName, "add failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ProviderUnavailable(ipfsName,
			fmt.Sprintf("add rejected with %d", resp.StatusCode))
	}

	var added struct {
		Hash string `json:"Hash"`
		Size string `json:"Size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return nil, errors.Encoding("parsing add response", err)
	}
	return &model.BackupRecord{
		ID:          uuid.NewString(),
		Provider:    ipfsName,
		Location:    added.Hash,
		Size:        int64(len(blob)),
		Timestamp:   time.Now().UTC(),
		IsEncrypted: true,
	}, nil
}

// List enumerates recursive pins. CIDs carry no timestamps, so records
// come back with zero times; the registry is the authoritative index.
func (p *IPFS) List(ctx context.Context) ([]*model.BackupRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.APIBase+"/api/v0/pin/ls?type=recursive", nil)
	if err != nil {
		return nil, errors.IO("building pin listing request", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.ProviderUnavailable(ipfsName, "pin listing failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ProviderUnavailable(ipfsName,
			fmt.Sprintf("pin listing rejected with %d", resp.StatusCode))
	}
	var pins struct {
		Keys map[string]struct {
			Type string `json:"Type"`
		} `json:"Keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pins); err != nil {
		return nil, errors.Encoding("parsing pin listing", err)
	}
	var records []*model.BackupRecord
	for cid := range pins.Keys {
		records = append(records, &model.BackupRecord{
			ID:          cid,
			Provider:    ipfsName,
			Location:    cid,
			IsEncrypted: true,
		})
	}
	return records, nil
}

func (p *IPFS) Delete(ctx context.Context, record *model.BackupRecord) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.APIBase+"/api/v0/pin/rm?arg="+url.QueryEscape(record.Location), nil)
	if err != nil {
		return errors.IO("building unpin request", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return errors.ProviderUnavailable(ipfsName, "unpin failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.NotFound("pin " + record.Location)
	}
	return nil
}

func (p *IPFS) Fetch(ctx context.Context, record *model.BackupRecord) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.APIBase+"/api/v0/cat?arg="+url.QueryEscape(record.Location), nil)
	if err != nil {
		return nil, errors.IO("building cat request", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.ProviderUnavailable(ipfsName, "cat failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NotFound("object " + record.Location)
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.IO("reading object", err)
	}
	return blob, nil
}
