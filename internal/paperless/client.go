// Package paperless is a client for the Paperless-ngx REST API, covering
// the slice of it this system consumes: paginated document listing (plain
// and filtered by custom-field predicates), per-document notes, raw
// content download, and custom field definitions/instances.
package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError wraps any transport or service failure from Paperless. It is
// the single error type callers see from this package.
type APIError struct {
	Method     string
	URL        string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("paperless: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("paperless: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client talks to one Paperless instance with one API token. Calls are
// sequential and blocking; the only timeout is the HTTP client's.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Paperless client. The token is required: Paperless
// authenticates every endpoint this client touches.
func NewClient(baseURL, token string, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("paperless: api token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// do sends one request and decodes a JSON response into out (when out is
// non-nil). Any failure comes back as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	u := c.url(path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Method: method, URL: u, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return &APIError{Method: method, URL: u, Err: err}
	}
	req.Header.Set("Authorization", "Token "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("paperless request", "method", method, "url", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Method: method, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &APIError{Method: method, URL: u, StatusCode: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Method: method, URL: u, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Documents returns a pager over every document, one API page at a time.
func (c *Client) Documents() *DocumentPager {
	return &DocumentPager{client: c, params: url.Values{}}
}

// QueryDocuments returns a pager over documents matching a custom-field
// predicate.
func (c *Client) QueryDocuments(q Query) (*DocumentPager, error) {
	encoded, err := q.encode()
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("custom_field_query", encoded)
	return &DocumentPager{client: c, params: params}, nil
}

// Document fetches one document's metadata.
func (c *Client) Document(ctx context.Context, docID int64) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/", docID), nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Notes lists the notes attached to a document.
func (c *Client) Notes(ctx context.Context, docID int64) ([]Note, error) {
	var notes []Note
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/notes/", docID), nil, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// AddNote appends a note to a document and returns the created note.
// Paperless answers with the full note list; the newest entry is last.
func (c *Client) AddNote(ctx context.Context, docID int64, text string) (*Note, error) {
	var notes []Note
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/documents/%d/notes/", docID), nil,
		map[string]string{"note": text}, &notes)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		u := c.url(fmt.Sprintf("/api/documents/%d/notes/", docID))
		return nil, &APIError{Method: http.MethodPost, URL: u, Err: errors.New("empty note list in response")}
	}
	return &notes[len(notes)-1], nil
}

// DeleteNote removes a note from a document by note id.
func (c *Client) DeleteNote(ctx context.Context, docID, noteID int64) error {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(noteID, 10))
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/documents/%d/notes/", docID), params, nil, nil)
}

// Download returns the raw document content (the original or archived
// file, as Paperless serves it).
func (c *Client) Download(ctx context.Context, docID int64) ([]byte, error) {
	u := c.url(fmt.Sprintf("/api/documents/%d/download/", docID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Method: http.MethodGet, URL: u, Err: err}
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Method: http.MethodGet, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &APIError{Method: http.MethodGet, URL: u, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Method: http.MethodGet, URL: u, Err: err}
	}
	return data, nil
}

// CustomFieldByName scans the custom field definitions for a name match.
// Returns (nil, nil) when no field has that name.
func (c *Client) CustomFieldByName(ctx context.Context, name string) (*CustomField, error) {
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		var payload customFieldPage
		if err := c.do(ctx, http.MethodGet, "/api/custom_fields/", params, nil, &payload); err != nil {
			return nil, err
		}
		for i := range payload.Results {
			if payload.Results[i].Name == name {
				return &payload.Results[i], nil
			}
		}
		if payload.Next == nil || *payload.Next == "" {
			return nil, nil
		}
	}
}

// CreateCustomField creates a global custom field definition.
func (c *Client) CreateCustomField(ctx context.Context, name, dataType string) (*CustomField, error) {
	var cf CustomField
	err := c.do(ctx, http.MethodPost, "/api/custom_fields/", nil,
		map[string]string{"name": name, "data_type": dataType}, &cf)
	if err != nil {
		return nil, err
	}
	return &cf, nil
}

// DeleteCustomField removes a custom field definition by id.
func (c *Client) DeleteCustomField(ctx context.Context, fieldID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/custom_fields/%d/", fieldID), nil, nil, nil)
}

// SetCustomField writes value into the document's instance of the given
// field, replacing an existing instance or appending a new one, and
// patches the full instance array back. At most one instance per
// (document, field) pair survives.
func (c *Client) SetCustomField(ctx context.Context, doc *Document, fieldID int64, value any) (*Document, error) {
	instances := make([]CustomFieldInstance, len(doc.CustomFields))
	copy(instances, doc.CustomFields)

	replaced := false
	for i := range instances {
		if instances[i].Field == fieldID {
			instances[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		instances = append(instances, CustomFieldInstance{Field: fieldID, Value: value})
	}
	return c.patchCustomFields(ctx, doc.ID, instances)
}

// RemoveCustomField deletes the document's instance of the given field.
// A document without the instance is returned unchanged, without a call.
func (c *Client) RemoveCustomField(ctx context.Context, doc *Document, fieldID int64) (*Document, error) {
	filtered := make([]CustomFieldInstance, 0, len(doc.CustomFields))
	for _, inst := range doc.CustomFields {
		if inst.Field != fieldID {
			filtered = append(filtered, inst)
		}
	}
	if len(filtered) == len(doc.CustomFields) {
		return doc, nil
	}
	return c.patchCustomFields(ctx, doc.ID, filtered)
}

func (c *Client) patchCustomFields(ctx context.Context, docID int64, instances []CustomFieldInstance) (*Document, error) {
	var updated Document
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/documents/%d/", docID), nil,
		map[string]any{"custom_fields": instances}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DocumentPager walks a paginated document listing one page at a time,
// surfacing documents as they arrive. It is single-pass and not
// restartable; create a new pager to scan again.
type DocumentPager struct {
	client  *Client
	params  url.Values
	page    int
	buf     []Document
	idx     int
	done    bool
	err     error
	current Document
}

// Next advances to the next document, fetching the next API page when the
// current one is exhausted. It returns false at the end of the listing or
// on error; check Err afterwards.
func (p *DocumentPager) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}
	for p.idx >= len(p.buf) {
		if p.done {
			return false
		}
		if !p.fetch(ctx) {
			return false
		}
	}
	p.current = p.buf[p.idx]
	p.idx++
	return true
}

// Document returns the document positioned by the last successful Next.
func (p *DocumentPager) Document() Document { return p.current }

// Err returns the first error the pager hit, if any.
func (p *DocumentPager) Err() error { return p.err }

func (p *DocumentPager) fetch(ctx context.Context) bool {
	p.page++
	params := url.Values{}
	for k, v := range p.params {
		params[k] = v
	}
	params.Set("page", strconv.Itoa(p.page))

	var payload documentPage
	if err := p.client.do(ctx, http.MethodGet, "/api/documents/", params, nil, &payload); err != nil {
		p.err = err
		return false
	}
	p.buf = payload.Results
	p.idx = 0
	if payload.Next == nil || *payload.Next == "" {
		p.done = true
	}
	return len(p.buf) > 0 || !p.done
}
