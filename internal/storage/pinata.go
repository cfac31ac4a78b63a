package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"thesiscert/internal/config"
	"thesiscert/internal/errs"
)

// pinataStore pins files through the Pinata IPFS pinning API.
type pinataStore struct {
	apiURL     string
	gateway    string
	jwt        string
	client     *http.Client
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewPinata creates a pinning client. The HTTP transport is traced with otelhttp.
func NewPinata(cfg config.PinataConfig, gateway string, logger *zap.Logger) (ContentStore, error) {
	if cfg.JWT == "" {
		return nil, fmt.Errorf("pinata jwt is required")
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("pinata api url is required")
	}
	return &pinataStore{
		apiURL:  strings.TrimRight(cfg.APIURL, "/"),
		gateway: gateway,
		jwt:     cfg.JWT,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
		logger: logger.With(zap.String("component", "store"), zap.String("provider", "pinata")),
	}, nil
}

func (p *pinataStore) Provider() string { return "pinata" }

func (p *pinataStore) GatewayURL(contentID string) string { return gatewayURL(p.gateway, contentID) }

// Upload posts the file as multipart/form-data. Server errors and network failures are
// retried with exponential backoff; client errors are returned at once.
func (p *pinataStore) Upload(ctx context.Context, data []byte, filename, contentType string) (Pin, error) {
	body, formType, err := pinForm(data, filename, contentType)
	if err != nil {
		return Pin{}, err
	}

	var out pinResponse
	err = p.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinFileToIPFS", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", formType)
		return req, nil
	}, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return Pin{}, err
	}
	if out.IpfsHash == "" {
		return Pin{}, errs.Transient("pinning provider returned no content id", nil)
	}

	p.logger.Debug("pinned", zap.String("cid", out.IpfsHash), zap.Int64("size", out.PinSize))
	return Pin{
		ContentID: out.IpfsHash,
		Key:       out.IpfsHash,
		Size:      int64(len(data)),
		Provider:  p.Provider(),
		PinnedAt:  time.Now().UTC(),
	}, nil
}

// Fetch downloads the content through the public gateway.
func (p *pinataStore) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.GatewayURL(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Transient("gateway unreachable", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Transient("gateway fetch failed", fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

// Unpin removes the pin for key (a CID).
func (p *pinataStore) Unpin(ctx context.Context, key string) error {
	return p.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, p.apiURL+"/pinning/unpin/"+key, nil)
	}, nil)
}

func (p *pinataStore) do(ctx context.Context, build func() (*http.Request, error), decode func(*http.Response) error) error {
	// permanent records a failure that must not be retried; backoff only sees the wrapper.
	var permanent error
	stop := func(err error) error {
		permanent = err
		return backoff.Permanent(err)
	}

	op := func() error {
		req, err := build()
		if err != nil {
			return stop(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.jwt)

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("pinning provider: %s", resp.Status)
		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			return stop(errs.Validation("file rejected by pinning provider as too large"))
		case resp.StatusCode >= 400:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return stop(fmt.Errorf("pinning provider rejected request: %s: %s", resp.Status, strings.TrimSpace(string(msg))))
		}
		if decode != nil {
			if err := decode(resp); err != nil {
				return stop(fmt.Errorf("decode pinning response: %w", err))
			}
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(p.newBackOff(), ctx))
	switch {
	case err == nil:
		return nil
	case permanent != nil:
		return permanent
	case ctx.Err() != nil:
		return errs.Transient("pinning timed out", ctx.Err())
	}
	p.logger.Warn("pinning provider unavailable", zap.Error(err))
	return errs.Transient("pinning provider unavailable", err)
}

func pinForm(data []byte, filename, contentType string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	meta, _ := json.Marshal(map[string]any{"name": filename})
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
