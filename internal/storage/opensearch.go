// Package storage manages the events index in OpenSearch: lazy, idempotent
// schema provisioning and upsert-by-id document writes.
package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
)

// ErrUnavailable reports that the store could not be reached, after the
// bounded reconnect attempt. Callers should surface it as a service-level
// failure and retry later.
var ErrUnavailable = errors.New("document store unavailable")

// SchemaError reports that the events index could not be created or
// verified. Fatal to the request: an unschematized store cannot take writes.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ensure index: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed document write, carrying the store's detail.
type WriteError struct {
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("index document %s: %v", e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Store is the write-path contract the pipeline depends on.
type Store interface {
	// EnsureIndex provisions the events index if it does not exist yet.
	// Safe to call repeatedly and concurrently; the exists-then-create
	// race resolves to the same fixed mapping either way.
	EnsureIndex(ctx context.Context) error

	// IndexEvent writes doc under id, fully replacing any prior document
	// with the same id.
	IndexEvent(ctx context.Context, id string, doc interface{}) error

	// Ping reports current store reachability.
	Ping(ctx context.Context) error
}

// Config holds OpenSearch connection and index settings.
type Config struct {
	URL              string
	Username         string
	Password         string
	TLSSkipVerify    bool
	IndexName        string
	RequestTimeout   time.Duration
	MaxRetries       int
	VectorDimensions int
}

// Client is the OpenSearch-backed Store. The underlying transport manages
// its own connection pooling and is safe for concurrent use.
type Client struct {
	mu          sync.Mutex
	os          *opensearch.Client
	cfg         Config
	schemaReady bool
}

// NewClient builds the OpenSearch client. Connectivity is not required at
// construction time; operations ping and fail fast when the store is down.
func NewClient(cfg Config) (*Client, error) {
	osClient, err := newOpenSearchClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return &Client{os: osClient, cfg: cfg}, nil
}

func newOpenSearchClient(cfg Config) (*opensearch.Client, error) {
	return opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{502, 503, 504},
	})
}

func (c *Client) client() *opensearch.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.os
}

// Ping verifies store reachability.
func (c *Client) Ping(ctx context.Context) error {
	client := c.client()
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: ping returned %s", ErrUnavailable, res.Status())
	}
	return nil
}

// checkAlive gates operations on connectivity. On a failed ping it rebuilds
// the client once and pings again before giving up; the reconnect budget is
// deliberately bounded so the hot path cannot hang in a retry loop.
func (c *Client) checkAlive(ctx context.Context) error {
	if err := c.Ping(ctx); err == nil {
		return nil
	}

	c.mu.Lock()
	fresh, err := newOpenSearchClient(c.cfg)
	if err == nil {
		c.os = fresh
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: reconnect failed: %v", ErrUnavailable, err)
	}
	return c.Ping(ctx)
}

// EnsureIndex checks for the events index and creates it with the fixed
// mapping if absent. A concurrent create losing the race ("resource already
// exists") is success: the net schema state is correct either way.
func (c *Client) EnsureIndex(ctx context.Context) error {
	c.mu.Lock()
	ready := c.schemaReady
	c.mu.Unlock()
	if ready {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if err := c.checkAlive(ctx); err != nil {
		return err
	}

	client := c.client()
	exists, err := client.Indices.Exists(
		[]string{c.cfg.IndexName},
		client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		c.markSchemaReady()
		return nil
	}

	body, err := json.Marshal(c.indexDefinition())
	if err != nil {
		return &SchemaError{Err: err}
	}

	res, err := client.Indices.Create(
		c.cfg.IndexName,
		client.Indices.Create.WithBody(bytes.NewReader(body)),
		client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(res.Body)
		if strings.Contains(string(detail), "resource_already_exists_exception") {
			c.markSchemaReady()
			return nil
		}
		return &SchemaError{Err: fmt.Errorf("%s - %s", res.Status(), string(detail))}
	}

	c.markSchemaReady()
	return nil
}

func (c *Client) markSchemaReady() {
	c.mu.Lock()
	c.schemaReady = true
	c.mu.Unlock()
}

// IndexEvent upserts doc under id, a single atomic full-document replace.
func (c *Client) IndexEvent(ctx context.Context, id string, doc interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if err := c.checkAlive(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return &WriteError{ID: id, Err: fmt.Errorf("marshal document: %w", err)}
	}

	client := c.client()
	res, err := client.Index(
		c.cfg.IndexName,
		bytes.NewReader(data),
		client.Index.WithDocumentID(id),
		client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(res.Body)
		return &WriteError{ID: id, Err: fmt.Errorf("%s - %s", res.Status(), string(detail))}
	}

	return nil
}

// indexDefinition is the fixed events schema. The mapping is a constant of
// the service, not request-derived, so concurrent provisioning converges on
// one definition.
func (c *Client) indexDefinition() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{
				"knn": true,
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type": "keyword",
				},
				"title": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"description": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"start_time": map[string]interface{}{
					"type": "date",
				},
				"end_time": map[string]interface{}{
					"type": "date",
				},
				"location": map[string]interface{}{
					"properties": map[string]interface{}{
						"name": map[string]interface{}{
							"type": "text",
						},
						"address": map[string]interface{}{
							"type": "text",
						},
						"geo": map[string]interface{}{
							"type": "geo_point",
						},
					},
				},
				"organizer_info": map[string]interface{}{
					"properties": map[string]interface{}{
						"name": map[string]interface{}{
							"type": "keyword",
						},
						"contact_email": map[string]interface{}{
							"type": "keyword",
						},
						"website": map[string]interface{}{
							"type": "keyword",
						},
					},
				},
				"action_link": map[string]interface{}{
					"properties": map[string]interface{}{
						"url": map[string]interface{}{
							"type": "keyword",
						},
						"text": map[string]interface{}{
							"type": "text",
						},
						"type": map[string]interface{}{
							"type": "keyword",
						},
					},
				},
				"signature": map[string]interface{}{
					"type": "keyword",
				},
				"media": map[string]interface{}{
					"properties": map[string]interface{}{
						"type": map[string]interface{}{
							"type": "keyword",
						},
						"value": map[string]interface{}{
							"type": "keyword",
						},
					},
				},
				"related_links": map[string]interface{}{
					"type": "nested",
					"properties": map[string]interface{}{
						"url": map[string]interface{}{
							"type": "keyword",
						},
						"text": map[string]interface{}{
							"type": "text",
						},
						"type": map[string]interface{}{
							"type": "keyword",
						},
					},
				},
				"vector_embedding": map[string]interface{}{
					"type":      "knn_vector",
					"dimension": c.cfg.VectorDimensions,
				},
			},
		},
	}
}
