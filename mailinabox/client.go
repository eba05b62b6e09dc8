package mailinabox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Path under which the custom DNS records API lives.
const customDNSPath = "/admin/dns/custom"

// A client for the custom DNS section of a Mail-in-a-Box administration API.
// Every call is authenticated with HTTP basic authentication.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// A custom DNS record, as listed by the administration API.
type CustomRecord struct {
	QName string `json:"qname"`
	RType string `json:"rtype"`
	Value string `json:"value"`
}

// Returned when the administration API answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"mailinabox: %s %s returned status %d: %s",
		e.Method,
		e.Path,
		e.StatusCode,
		e.Body,
	)
}

// Creates a client for the administration API at baseURL (for example,
// "https://box.example.com"). If httpClient is nil, http.DefaultClient is
// used.
func NewClient(
	baseURL string,
	username string,
	password string,
	httpClient *http.Client,
) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     httpClient,
	}
}

// Returns the API path for the custom records named qname. If rtype is
// non-empty, the path is narrowed to that (lowercased) record type.
func RecordPath(qname string, rtype string) string {
	path := customDNSPath + "/" + url.PathEscape(qname)
	if rtype != "" {
		path += "/" + strings.ToLower(rtype)
	}
	return path
}

// Adds a record. Existing records with the same name and type are kept.
func (c *Client) AddRecord(
	ctx context.Context,
	qname string,
	rtype string,
	value string,
) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, RecordPath(qname, rtype), value)
}

// Replaces all records with the given name and type. An empty rtype and value
// asks the server to refresh the name.
func (c *Client) UpdateRecord(
	ctx context.Context,
	qname string,
	rtype string,
	value string,
) ([]byte, error) {
	return c.Do(ctx, http.MethodPut, RecordPath(qname, rtype), value)
}

// Deletes records with the given name and type. If value is empty, every
// record of that type is deleted; otherwise only the matching one.
func (c *Client) DeleteRecord(
	ctx context.Context,
	qname string,
	rtype string,
	value string,
) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, RecordPath(qname, rtype), value)
}

// Lists all custom records.
func (c *Client) ListRecords(ctx context.Context) ([]CustomRecord, error) {
	body, err := c.Do(ctx, http.MethodGet, customDNSPath, "")
	if err != nil {
		return nil, err
	}

	var records []CustomRecord
	err = json.Unmarshal(body, &records)
	if err != nil {
		return nil, fmt.Errorf("mailinabox: decode record list: %w", err)
	}
	return records, nil
}

// Sends one request to the API and returns the raw response body. A
// non-empty value is sent as a plain-text body.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	value string,
) ([]byte, error) {
	var bodyReader io.Reader
	if value != "" {
		bodyReader = strings.NewReader(value)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("mailinabox: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if value != "" {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailinabox: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mailinabox: read response to %s %s: %w", method, path, err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
