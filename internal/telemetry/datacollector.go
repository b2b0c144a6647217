package telemetry

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	dataCollectorAPIVersion = "2016-04-01"
	dataCollectorResource   = "/api/logs"

	// maxPostBytes keeps each POST under the Data Collector API's 30 MB limit.
	maxPostBytes = 25 << 20
)

// DataCollectorSender posts records to the Azure Monitor HTTP Data Collector
// API with SharedKey authentication.
type DataCollectorSender struct {
	WorkspaceID string
	SharedKey   string

	// Endpoint overrides https://<workspace>.ods.opinsights.azure.com.
	Endpoint string

	HTTPClient *http.Client
	Logger     *slog.Logger

	now func() time.Time
}

func NewDataCollectorSender(workspaceID, sharedKey string, logger *slog.Logger) (*DataCollectorSender, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, errors.New("data collector: workspace id is required")
	}
	if _, err := base64.StdEncoding.DecodeString(sharedKey); err != nil || sharedKey == "" {
		return nil, errors.New("data collector: shared key must be non-empty base64")
	}
	return &DataCollectorSender{
		WorkspaceID: workspaceID,
		SharedKey:   sharedKey,
		HTTPClient:  defaultHTTPClient(),
		Logger:      logger,
	}, nil
}

func (s *DataCollectorSender) url() string {
	base := s.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s.ods.opinsights.azure.com", s.WorkspaceID)
	}
	return strings.TrimRight(base, "/") + dataCollectorResource + "?api-version=" + dataCollectorAPIVersion
}

// Send posts the batch, split into chunks that fit the per-request limit.
func (s *DataCollectorSender) Send(ctx context.Context, batch Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	chunks, err := chunkRecords(batch.Records(), maxPostBytes)
	if err != nil {
		return err
	}
	for i, body := range chunks {
		if err := s.post(ctx, batch.LogType, body); err != nil {
			return fmt.Errorf("data collector: chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	if s.Logger != nil {
		s.Logger.Debug("telemetry sent", "backend", "data-collector", "log_type", batch.LogType, "records", batch.Len(), "requests", len(chunks))
	}
	return nil
}

func (s *DataCollectorSender) post(ctx context.Context, logType string, body []byte) error {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	date := now().UTC().Format(http.TimeFormat)

	sig, err := buildSignature(s.SharedKey, date, len(body))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Log-Type", logType)
	req.Header.Set("x-ms-date", date)
	req.Header.Set("time-generated-field", "TimeGenerated")
	req.Header.Set("Authorization", fmt.Sprintf("SharedKey %s:%s", s.WorkspaceID, sig))

	client := s.HTTPClient
	if client == nil {
		client = defaultHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

// buildSignature signs the request per the Data Collector API SharedKey scheme.
func buildSignature(sharedKey, date string, contentLength int) (string, error) {
	key, err := base64.StdEncoding.DecodeString(sharedKey)
	if err != nil {
		return "", fmt.Errorf("decode shared key: %w", err)
	}
	stringToSign := "POST\n" + strconv.Itoa(contentLength) + "\napplication/json\nx-ms-date:" + date + "\n" + dataCollectorResource
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// chunkRecords encodes records as JSON arrays no larger than limit bytes.
// A single record larger than limit is sent on its own.
func chunkRecords(records []Record, limit int) ([][]byte, error) {
	var chunks [][]byte
	var cur bytes.Buffer
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
		if cur.Len() > 0 && cur.Len()+len(b)+2 > limit {
			cur.WriteByte(']')
			chunks = append(chunks, bytes.Clone(cur.Bytes()))
			cur.Reset()
		}
		if cur.Len() == 0 {
			cur.WriteByte('[')
		} else {
			cur.WriteByte(',')
		}
		cur.Write(b)
	}
	if cur.Len() > 0 {
		cur.WriteByte(']')
		chunks = append(chunks, bytes.Clone(cur.Bytes()))
	}
	return chunks, nil
}
