// Package sink publishes resources produced by the mapping engine: an
// optional upsert to a FHIR-shaped HTTP endpoint, and/or an NDJSON append to
// a per-resource-type file.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/log"
	"github.com/mii-cds/cdstoolbox/internal/mapping"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 2 * time.Second
)

// Config configures a Sink's HTTP upsert and NDJSON append behavior.
type Config struct {
	BaseURL        string
	NoFHIRServer   bool
	OutputFolder   string
	RetryCount     int
	RequestTimeout time.Duration
}

// Sink publishes resources via HTTP upsert and/or NDJSON append, per
// spec.md §4.7.
type Sink struct {
	cfg    Config
	client *http.Client
	logger log.Logger

	files     map[string]*os.File
	filesMu   sync.Mutex
	keyLocks  map[string]*sync.Mutex
	keyLockMu sync.Mutex
}

// New returns a Sink ready to Publish. Logger may be nil.
func New(cfg Config, logger log.Logger) *Sink {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sink{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		files:    map[string]*os.File{},
		keyLocks: map[string]*sync.Mutex{},
	}
}

// Publish upserts resource via HTTP (when a base URL is configured and the
// no-FHIR-server flag is unset) and appends it as NDJSON to its
// resource-type file (when an output folder is configured). Both are
// always attempted regardless of the other's outcome, so the NDJSON output
// always carries every resource the mapping engine produced even when the
// HTTP upsert fails. Their errors, if any, are combined.
func (s *Sink) Publish(ctx context.Context, r mapping.Resource) error {
	var upsertErr, ndjsonErr error

	if s.cfg.BaseURL != "" && !s.cfg.NoFHIRServer {
		lock := s.lockFor(r.ResourceType() + "/" + r.ID())
		lock.Lock()
		upsertErr = s.upsert(ctx, r)
		lock.Unlock()
	}
	if s.cfg.OutputFolder != "" {
		ndjsonErr = s.appendNDJSON(r)
	}

	return errors.Join(upsertErr, ndjsonErr)
}

func (s *Sink) lockFor(key string) *sync.Mutex {
	s.keyLockMu.Lock()
	defer s.keyLockMu.Unlock()
	m, ok := s.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.keyLocks[key] = m
	}
	return m
}

// upsert PUTs to base/{type}/{id} when the resource has an id, otherwise
// POSTs to base/{type}. Connection errors are retried with a fixed backoff
// up to Config.RetryCount times; HTTP status failures are not retried.
func (s *Sink) upsert(ctx context.Context, r mapping.Resource) error {
	body, err := json.Marshal(r.Fields())
	if err != nil {
		return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, r.ResourceType(), "marshaling resource", err)
	}

	method := http.MethodPost
	url := fmt.Sprintf("%s/%s", s.cfg.BaseURL, r.ResourceType())
	if r.ID() != "" {
		method = http.MethodPut
		url = fmt.Sprintf("%s/%s/%s", s.cfg.BaseURL, r.ResourceType(), r.ID())
	}

	attempts := s.cfg.RetryCount
	if attempts < 0 {
		attempts = 0
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "retrying resource upsert", "resourceType", r.ResourceType(), "id", r.ID(), "attempt", attempt)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(defaultRetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, r.ResourceType(), "building request", err)
		}
		req.Header.Set("Content-Type", "application/fhir+json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return nil
		}
		return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, r.ResourceType(),
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, r.ResourceType(), "connection failed after retries", lastErr)
}

func (s *Sink) appendNDJSON(r mapping.Resource) error {
	f, err := s.fileFor(r.ResourceType())
	if err != nil {
		return err
	}

	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	line, err := json.Marshal(r.Fields())
	if err != nil {
		return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, r.ResourceType(), "marshaling resource for ndjson", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, r.ResourceType(), "appending to ndjson file", err)
	}
	return nil
}

func (s *Sink) fileFor(resourceType string) (*os.File, error) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	if f, ok := s.files[resourceType]; ok {
		return f, nil
	}
	if err := os.MkdirAll(s.cfg.OutputFolder, 0o755); err != nil {
		return nil, cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, resourceType, "creating output folder", err)
	}
	path := filepath.Join(s.cfg.OutputFolder, resourceType+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeResource, resourceType, "opening ndjson file", err)
	}
	s.files[resourceType] = f
	return f, nil
}

// Close closes every NDJSON file opened by this sink.
func (s *Sink) Close() error {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
