package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

const (
	remoteName = "remote"
	// remoteMaxPayload is the release-asset style upload ceiling.
	remoteMaxPayload = 2 << 30
)

// TokenSource hands out the bearer token for the remote endpoint. The
// keychain store satisfies this with a bound method.
type TokenSource func() (string, error)

// Remote uploads blobs to a release-style HTTP endpoint with a bearer
// token. Payloads over 2 GiB are rejected up front.
type Remote struct {
	BaseURL string
	Token   TokenSource
	Client  *http.Client
}

// NewRemote builds the provider against baseURL.
func NewRemote(baseURL string, token TokenSource) *Remote {
	return &Remote{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *Remote) Name() string { return remoteName }

func (p *Remote) Available(ctx context.Context, size int64) error {
	if p.BaseURL == "" {
		return errors.ProviderUnavailable(remoteName, "no remote endpoint configured")
	}
	if _, err := p.Token(); err != nil {
		return errors.ProviderUnavailable(remoteName, "no upload token in keychain or environment")
	}
	if size > remoteMaxPayload {
		return errors.QuotaExceeded(remoteName, size, remoteMaxPayload)
	}
	return nil
}

func (p *Remote) Upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error) {
	if err := p.Available(ctx, int64(len(blob))); err != nil {
		return nil, err
	}
	token, err := p.Token()
	if err != nil {
		return nil, errors.ProviderUnavailable(remoteName, "no upload token in keychain or environment")
	}

	url := fmt.Sprintf("%s/assets/%s", p.BaseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(blob))
	if err != nil {
		return nil, errors.IO("building upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.ProviderUnavailable(remoteName, "upload failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.ProviderUnavailable(remoteName,
			fmt.Sprintf("upload rejected with %d: %s", resp.StatusCode, body))
	}
	return &model.BackupRecord{
		ID:          uuid.NewString(),
		Provider:    remoteName,
		Location:    url,
		Size:        int64(len(blob)),
		Timestamp:   time.Now().UTC(),
		IsEncrypted: true,
	}, nil
}

func (p *Remote) List(ctx context.Context) ([]*model.BackupRecord, error) {
	req, err := p.request(ctx, http.MethodGet, p.BaseURL+"/assets", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.ProviderUnavailable(remoteName, "listing failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ProviderUnavailable(remoteName,
			fmt.Sprintf("listing rejected with %d", resp.StatusCode))
	}
	var records []*model.BackupRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Encoding("parsing remote asset list", err)
	}
	return records, nil
}

func (p *Remote) Delete(ctx context.Context, record *model.BackupRecord) error {
	req, err := p.request(ctx, http.MethodDelete, record.Location, nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return errors.ProviderUnavailable(remoteName, "delete failed: "+err.Error())
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("remote asset " + record.Location)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.ProviderUnavailable(remoteName,
			fmt.Sprintf("delete rejected with %d", resp.StatusCode))
	}
	return nil
}

func (p *Remote) Fetch(ctx context.Context, record *model.BackupRecord) ([]byte, error) {
	req, err := p.request(ctx, http.MethodGet, record.Location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.ProviderUnavailable(remoteName, "fetch failed: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound("remote asset " + record.Location)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ProviderUnavailable(remoteName,
			fmt.Sprintf("fetch rejected with %d", resp.StatusCode))
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.IO("reading remote asset", err)
	}
	return blob, nil
}

func (p *Remote) request(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	token, err := p.Token()
	if err != nil {
		return nil, errors.ProviderUnavailable(remoteName, "no upload token in keychain or environment")
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.IO("building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
