package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"thesiscert/internal/model"
)

// ErrInconsistent is returned when the API answers but the certificate does not
// check out, so scripts can rely on the exit status.
var ErrInconsistent = errors.New("certificate is not consistent")

type apiError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api returned status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d, request %s)", e.Code, e.Message, e.Status, e.RequestID)
}

func NewCmdVerify(out io.Writer, cfg *Config) *cobra.Command {
	var asRef bool
	cmd := &cobra.Command{
		Use:   "verify FILE|REF",
		Short: "Verify a file or a thesis id, digest or transaction hash against the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}

			client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
			target := args[0]

			var (
				cert *model.Certificate
				err  error
			)
			if _, statErr := os.Stat(target); statErr == nil && !asRef {
				cert, err = verifyFile(ctx, client, cfg, target)
			} else {
				cert, err = verifyRef(ctx, client, cfg.Server, target)
			}
			if err != nil {
				return err
			}
			printCertificate(out, cert)
			if !cert.Consistent || cert.Revoked {
				return ErrInconsistent
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asRef, "ref", false, "Treat the argument as a reference even if a file with that name exists")
	return cmd
}

func verifyRef(ctx context.Context, client *http.Client, server, ref string) (*model.Certificate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/certificates/"+url.PathEscape(strings.TrimSpace(ref)), nil)
	if err != nil {
		return nil, err
	}
	return doCertificate(client, req)
}

func verifyFile(ctx context.Context, client *http.Client, cfg *Config, path string) (*model.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if cfg.Algorithm != "" {
		if err := w.WriteField("algorithm", cfg.Algorithm); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Server+"/certificates/verify-file", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return doCertificate(client, req)
}

func doCertificate(client *http.Client, req *http.Request) (*model.Certificate, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var payload struct {
			RequestID string `json:"request_id"`
			Error     struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return nil, &apiError{
			Status:    resp.StatusCode,
			Code:      payload.Error.Code,
			Message:   payload.Error.Message,
			RequestID: payload.RequestID,
		}
	}

	var cert model.Certificate
	if err := json.NewDecoder(resp.Body).Decode(&cert); err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	return &cert, nil
}

func printCertificate(out io.Writer, c *model.Certificate) {
	label := color.New(color.Bold)
	row := func(name, value string) {
		label.Fprintf(out, "%-12s", name)
		fmt.Fprintf(out, " %s\n", value)
	}

	row("thesis", c.ThesisID)
	row("institution", c.InstitutionID)
	row("status", string(c.Status))
	row("digest", string(c.DigestAlgorithm)+":"+c.Digest)
	row("content", c.ContentID)
	if c.TxHash != "" {
		row("tx", fmt.Sprintf("%s (chain %d, block %d)", c.TxHash, c.ChainID, c.BlockNumber))
	}
	if c.IssuedAt != nil {
		row("issued", c.IssuedAt.Format("2006-01-02 15:04:05 MST"))
	}

	switch {
	case c.Revoked:
		color.New(color.FgYellow, color.Bold).Fprintf(out, "REVOKED by %s\n", c.RevokedBy)
	case c.Consistent:
		color.New(color.FgGreen, color.Bold).Fprintln(out, "CONSISTENT")
	default:
		color.New(color.FgRed, color.Bold).Fprintf(out, "MISMATCH %s\n", strings.Join(c.Mismatches, ", "))
	}
}
