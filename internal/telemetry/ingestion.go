package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	ingestionAPIVersion = "2023-01-01"
	ingestionScope      = "https://monitor.azure.com//.default"
	defaultAuthority    = "https://login.microsoftonline.com"

	// maxIngestionBytes keeps each call under the Logs Ingestion API's 1 MB
	// limit. Chunks are sized before compression.
	maxIngestionBytes = 1_000_000
)

// IngestionConfig configures the Azure Monitor Logs Ingestion API sender.
type IngestionConfig struct {
	// Endpoint is the data collection endpoint, e.g. https://my-dce.westeurope-1.ingest.monitor.azure.com.
	Endpoint     string
	DCRImmutable string
	Stream       string

	TenantID     string
	ClientID     string
	ClientSecret string

	// Authority overrides https://login.microsoftonline.com.
	Authority string
}

func (c IngestionConfig) validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.DCRImmutable == "" {
		missing = append(missing, "dcr id")
	}
	if c.Stream == "" {
		missing = append(missing, "stream")
	}
	if c.TenantID == "" {
		missing = append(missing, "tenant id")
	}
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("logs ingestion: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// IngestionSender posts gzip-compressed records to a data collection rule
// stream, authenticating with OAuth2 client credentials.
type IngestionSender struct {
	cfg    IngestionConfig
	creds  *clientcredentials.Config
	Logger *slog.Logger

	// HTTPClient is the base client for both token and ingestion requests.
	HTTPClient *http.Client

	// maxBytes overrides maxIngestionBytes.
	maxBytes int
}

func NewIngestionSender(cfg IngestionConfig, logger *slog.Logger) (*IngestionSender, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	authority := cfg.Authority
	if authority == "" {
		authority = defaultAuthority
	}
	return &IngestionSender{
		cfg: cfg,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimRight(authority, "/") + "/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token",
			Scopes:       []string{ingestionScope},
		},
		Logger:     logger,
		HTTPClient: defaultHTTPClient(),
	}, nil
}

func (s *IngestionSender) url() string {
	return fmt.Sprintf("%s/dataCollectionRules/%s/streams/%s?api-version=%s",
		strings.TrimRight(s.cfg.Endpoint, "/"),
		url.PathEscape(s.cfg.DCRImmutable),
		url.PathEscape(s.cfg.Stream),
		ingestionAPIVersion)
}

func (s *IngestionSender) client(ctx context.Context) *http.Client {
	base := s.HTTPClient
	if base == nil {
		base = defaultHTTPClient()
	}
	// The token request uses the base client; ingestion requests go through
	// the oauth2 transport layered on it.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	c := s.creds.Client(ctx)
	c.Timeout = base.Timeout
	return c
}

// Send posts the batch in gzip-compressed chunks that fit the per-call limit.
func (s *IngestionSender) Send(ctx context.Context, batch Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	limit := s.maxBytes
	if limit <= 0 {
		limit = maxIngestionBytes
	}
	chunks, err := chunkRecords(batch.Records(), limit)
	if err != nil {
		return fmt.Errorf("logs ingestion: %w", err)
	}

	client := s.client(ctx)
	var sent int
	for i, chunk := range chunks {
		n, err := s.post(ctx, client, chunk)
		if err != nil {
			return fmt.Errorf("logs ingestion: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		sent += n
	}
	if s.Logger != nil {
		s.Logger.Debug("telemetry sent", "backend", "logs-ingestion", "stream", s.cfg.Stream, "records", batch.Len(), "requests", len(chunks), "bytes", sent)
	}
	return nil
}

func (s *IngestionSender) post(ctx context.Context, client *http.Client, chunk []byte) (int, error) {
	body, err := gzipBytes(chunk)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url(), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := client.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return 0, fmt.Errorf("token request failed: %w", rerr)
		}
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return 0, err
	}
	return len(body), nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("compress records: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress records: %w", err)
	}
	return buf.Bytes(), nil
}
