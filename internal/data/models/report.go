package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"auditrelay/internal/data"

	"github.com/google/go-github/v81/github"
)

const (
	// ReportSchema is the current report document version.
	ReportSchema = 1

	// KindRepository marks a report describing one repository.
	KindRepository = "repository"

	// PlatformGitHub is the platform name written by the GitHub exporter.
	PlatformGitHub = "github"
)

// Report is the on-disk document written by the exporter and read by the
// local rule engine. Each section is stored raw so unknown keys survive a
// round trip; sections that could not be fetched are listed in Errors.
type Report struct {
	Schema     int                                    `json:"schema"`
	Kind       string                                 `json:"kind"`
	Platform   string                                 `json:"platform,omitempty"`
	Target     string                                 `json:"target"`
	ExportedAt time.Time                              `json:"exported_at"`
	Data       map[data.DependencyKey]json.RawMessage `json:"data,omitempty"`
	Errors     map[data.DependencyKey]*FetchError     `json:"errors,omitempty"`
}

// NewReport returns an empty repository report for target (OWNER/REPO).
func NewReport(target string, exportedAt time.Time) *Report {
	return &Report{
		Schema:     ReportSchema,
		Kind:       KindRepository,
		Platform:   PlatformGitHub,
		Target:     target,
		ExportedAt: exportedAt.UTC(),
		Data:       make(map[data.DependencyKey]json.RawMessage),
	}
}

// SetSection stores v under key. A nil v is stored as JSON null.
func (r *Report) SetSection(key data.DependencyKey, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal section %s: %w", key, err)
	}
	if r.Data == nil {
		r.Data = make(map[data.DependencyKey]json.RawMessage)
	}
	r.Data[key] = raw
	return nil
}

// SetError records that key could not be fetched.
func (r *Report) SetError(key data.DependencyKey, err error) {
	if err == nil {
		return
	}
	if r.Errors == nil {
		r.Errors = make(map[data.DependencyKey]*FetchError)
	}
	r.Errors[key] = NewFetchError(err)
}

// FetchError is the serialized form of a failed section fetch.
type FetchError struct {
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return e.Message
}

// NewFetchError converts err, keeping the HTTP status of platform API errors
// and dropping request URLs.
func NewFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		out := &FetchError{Message: strings.TrimSpace(er.Message)}
		if er.Response != nil {
			out.StatusCode = er.Response.StatusCode
		}
		if out.Message == "" {
			out.Message = "GitHub API request failed"
		}
		return out
	}
	return &FetchError{Message: err.Error()}
}

// DecodeSection converts a raw section into the typed value rules expect.
// A JSON null decodes to a nil value.
func DecodeSection(key data.DependencyKey, raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var v any
	switch key {
	case data.DepRepoMetadata:
		v = &github.Repository{}
	case data.DepRepoDefaultBranchClassicProtection:
		v = &github.Protection{}
	case data.DepRepoDefaultBranchCodeowners:
		v = &CodeownersPresence{}
	default:
		return nil, fmt.Errorf("unsupported section: %s", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode section %s: %w", key, err)
	}
	return v, nil
}
