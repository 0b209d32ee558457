package geonetwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	guuid "github.com/google/uuid"
)

const defaultTimeout = 60 * time.Second

// Client is the catalog capability consumed by the migration engine.
type Client interface {
	URL() string
	Version() int

	// GetRecords runs a paginated search. Query keys use the abstract filter
	// vocabulary (harvested, template, group, source, type, uuid) and are
	// translated to version-specific parameters.
	GetRecords(ctx context.Context, query map[string]string) ([]Record, error)

	// GetRecord fetches the raw XML of a record.
	GetRecord(ctx context.Context, uuid string) (string, error)

	// PutRecord creates a record (or a duplicate of one) in the given group
	// and returns the UUID of the created record.
	PutRecord(ctx context.Context, uuid, content string, mdType MetadataType, group *int, uuidProcessing string) (string, error)

	// UpdateRecord updates a record in place, honoring the workflow state of
	// the record (see WorkflowState) and the date-stamp flag.
	UpdateRecord(ctx context.Context, uuid, content string, mdType MetadataType, updateDateStamp bool, state *WorkflowState) error

	DeleteRecord(ctx context.Context, uuid string) error

	// GetSources returns the catalog's sources as an id -> name map.
	GetSources(ctx context.Context) (map[string]string, error)

	GetGroups(ctx context.Context) ([]Group, error)

	// UUIDFilter renders a list of UUIDs as a search filter for this catalog
	// version.
	UUIDFilter(uuids []string) map[string]string
}

// Connect authenticates against the catalog, probes its version and returns
// the matching client implementation.
func Connect(ctx context.Context, catalogURL, username, password string) (Client, error) {
	c := &client{
		url:      strings.TrimRight(catalogURL, "/"),
		username: username,
		password: password,
		hc: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: slog.With("module", "geonetwork"),
	}
	c.api = c.url + "/api"

	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	version, err := c.serverVersion(ctx)
	if err != nil {
		return nil, err
	}

	switch version {
	case 3:
		return &clientV3{client: c}, nil
	case 4:
		return &clientV4{client: c}, nil
	default:
		return nil, &UnsupportedVersionError{Version: version}
	}
}

type client struct {
	url      string
	api      string
	username string
	password string
	xsrf     string
	hc       *http.Client
	logger   *slog.Logger
}

func (c *client) URL() string {
	return c.url
}

func (c *client) authenticate(ctx context.Context) error {
	if c.username != "" {
		c.logger.InfoContext(ctx, "Authenticating against catalog", "username", c.username)
	}

	resp, err := c.do(ctx, http.MethodPost, c.api+"/info?_content_type=json&type=me", nil, "")
	if err != nil {
		return &ConnectionError{URL: c.url, Message: "handshake request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return &ConnectionError{
			URL:     c.url,
			Message: "redirected to " + resp.Header.Get("Location") + ", use the canonical server URL",
		}
	}

	// A failed POST means basic auth alone is not enough and further calls
	// need the XSRF token from the response cookies.
	if resp.StatusCode >= 400 {
		for _, cookie := range resp.Cookies() {
			if cookie.Name == "XSRF-TOKEN" {
				c.xsrf = cookie.Value

				c.logger.DebugContext(ctx, "XSRF token found")

				return nil
			}
		}

		return &ConnectionError{URL: c.url, Message: "unable to retrieve the XSRF token"}
	}

	return nil
}

func (c *client) serverVersion(ctx context.Context) (int, error) {
	var site map[string]any

	err := c.getJSON(ctx, c.api+"/site", nil, &site)
	if err != nil {
		return 0, &ConnectionError{URL: c.url, Message: "site info request failed", Err: err}
	}

	raw, ok := site["system/platform/version"].(string)
	if !ok {
		return 0, &ConnectionError{URL: c.url, Message: ErrMissingVersion.Error()}
	}

	version, err := strconv.Atoi(strings.SplitN(raw, ".", 2)[0])
	if err != nil {
		return 0, &ConnectionError{URL: c.url, Message: "unparseable version " + raw, Err: err}
	}

	c.logger.InfoContext(ctx, "Connected to catalog", "version", version)

	return version, nil
}

// do issues a request with the session's authentication attached. A non-empty
// contentType implies body is the request payload.
func (c *client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	if c.xsrf != "" {
		req.Header.Set("X-XSRF-TOKEN", c.xsrf)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.hc.Do(req)
}

// request issues a request and fails on non-2xx responses, returning the body.
func (c *client) request(ctx context.Context, op, method, rawURL string, params url.Values, accept string, body io.Reader, contentType string) ([]byte, error) {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	if c.xsrf != "" {
		req.Header.Set("X-XSRF-TOKEN", c.xsrf)
	}

	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s response read failed: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}

func (c *client) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	data, err := c.request(ctx, "GET "+rawURL, http.MethodGet, rawURL, params, "application/json", nil, "")
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

func (c *client) GetRecord(ctx context.Context, uuid string) (string, error) {
	c.logger.DebugContext(ctx, "Fetching record", "uuid", uuid)

	params := url.Values{
		"addSchemaLocation":  {"true"},
		"increasePopularity": {"false"},
		"withInfo":           {"true"},
		"attachment":         {"false"},
		// only relevant when workflow is enabled
		"approved": {"false"},
	}

	data, err := c.request(ctx, "get record", http.MethodGet,
		fmt.Sprintf("%s/records/%s/formatters/xml", c.api, uuid), params, "application/xml", nil, "")
	if err != nil {
		return "", err
	}

	return string(data), nil
}

var uuidPattern = regexp.MustCompile(`'([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})'`)

// extractCreatedUUID digs the created record's UUID out of the PUT /records
// response. It is not in the `uuid` field but in the `metadataInfos` import
// messages.
func extractCreatedUUID(payload map[string]any) string {
	infos, ok := payload["metadataInfos"].(map[string]any)
	if !ok {
		return ""
	}

	for _, entries := range infos {
		list, ok := entries.([]any)
		if !ok {
			continue
		}

		for _, entry := range list {
			info, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			message, _ := info["message"].(string)
			if match := uuidPattern.FindStringSubmatch(message); match != nil {
				if _, err := guuid.Parse(match[1]); err == nil {
					return match[1]
				}
			}
		}
	}

	return ""
}

func (c *client) PutRecord(ctx context.Context, uuid, content string, mdType MetadataType, group *int, uuidProcessing string) (string, error) {
	c.logger.DebugContext(ctx, "Duplicating record", "uuid", uuid, "type", mdType.Name(), "group", group)

	params := url.Values{
		"uuidProcessing": {uuidProcessing},
		"metadataType":   {mdType.Name()},
	}
	if group != nil {
		params.Set("group", strconv.Itoa(*group))
	}

	data, err := c.request(ctx, "put record", http.MethodPut, c.api+"/records", params,
		"application/json", strings.NewReader(content), "application/xml")
	if err != nil {
		return "", err
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("put record response decode failed: %w", err)
	}

	newUUID := extractCreatedUUID(payload)
	if newUUID == "" {
		return "", fmt.Errorf("put record response for %s contains no created record uuid", uuid)
	}

	return newUUID, nil
}

func (c *client) UpdateRecord(ctx context.Context, uuid, content string, mdType MetadataType, updateDateStamp bool, state *WorkflowState) error {
	// PUT /records delete/recreates the record instead of updating in place,
	// losing catalog-side metadata such as workflow state and access rights.
	// So we drive the editor API instead: open the XML editor view, discard it,
	// and immediately commit our content as the edit outcome.
	c.logger.DebugContext(ctx, "Updating record", "uuid", uuid, "type", mdType.Name(), "state", state)

	if state != nil && state.Stage == StageWorkingCopy {
		return ErrWorkingCopyUpdate
	}

	editorURL := fmt.Sprintf("%s/records/%s/editor", c.api, uuid)

	_, err := c.request(ctx, "open editor", http.MethodGet, editorURL,
		url.Values{"currTab": {"xml"}, "withAttributes": {"false"}}, "application/xml", nil, "")
	if err != nil {
		return err
	}

	minor := "false"
	if !updateDateStamp {
		minor = "true"
	}

	form := url.Values{
		"tab":                  {"xml"},
		"minor":                {minor},
		"withAttributes":       {"false"},
		"withValidationErrors": {"false"},
		"commit":               {"true"},
		"terminate":            {"true"},
		"template":             {string(mdType)},
		"data":                 {content},
	}

	if state != nil {
		if state.Status == StatusApproved {
			// The editor endpoint rejects setting the status directly to
			// APPROVED, so updates of approved records have to go through a
			// working copy. We create it as SUBMITTED so the update requires
			// reviewer action, and stays visible, should the follow-up
			// re-approval below fail.
			form.Set("status", strconv.Itoa(int(StatusSubmitted)))
		} else {
			form.Set("status", strconv.Itoa(int(state.Status)))
		}
	}

	_, err = c.request(ctx, "save editor", http.MethodPost, editorURL, nil, "",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}

	if state != nil && state.Stage == StageApproved {
		// The record was approved before the edit: transparently approve the
		// working copy the edit created.
		body, err := json.Marshal(map[string]any{
			"changeMessage": "Approved by ISOmorphe",
			"status":        int(StatusApproved),
		})
		if err != nil {
			return err
		}

		_, err = c.request(ctx, "approve working copy", http.MethodPut,
			fmt.Sprintf("%s/records/%s/status", c.api, uuid), nil, "",
			strings.NewReader(string(body)), "application/json")
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *client) DeleteRecord(ctx context.Context, uuid string) error {
	c.logger.DebugContext(ctx, "Deleting record", "uuid", uuid)

	_, err := c.request(ctx, "delete record", http.MethodDelete,
		fmt.Sprintf("%s/records/%s", c.api, uuid), url.Values{"withBackup": {"false"}}, "", nil, "")

	return err
}

func (c *client) GetSources(ctx context.Context) (map[string]string, error) {
	var payload []struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	}

	if err := c.getJSON(ctx, c.api+"/sources", nil, &payload); err != nil {
		return nil, err
	}

	sources := make(map[string]string, len(payload))
	for _, s := range payload {
		sources[s.UUID] = s.Name
	}

	return sources, nil
}

func (c *client) GetGroups(ctx context.Context) ([]Group, error) {
	var groups []Group

	if err := c.getJSON(ctx, c.api+"/groups", nil, &groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// expandQuery resolves the `__extra__` passthrough key into plain filter
// entries. Order matters: explicit extras override the abstract keys.
func expandQuery(query map[string]string) map[string]string {
	expanded := make(map[string]string, len(query))
	for k, v := range query {
		if k == "__extra__" {
			continue
		}

		expanded[k] = v
	}

	extra, ok := query["__extra__"]
	if !ok {
		return expanded
	}

	for _, pair := range strings.Split(extra, ",") {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}

		expanded[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return expanded
}

// metadataTypeOf derives the record type from a search hit source.
func metadataTypeOf(md map[string]any) MetadataType {
	if raw, ok := md["isTemplate"].(string); ok && raw != "" {
		return MetadataType(raw)
	}

	return Metadata
}

// workflowStateOf derives the workflow state from a search hit source, or nil
// when the catalog has the workflow feature disabled.
func workflowStateOf(md map[string]any) *WorkflowState {
	raw, ok := md["mdStatus"]
	if !ok {
		return nil
	}

	if draft, _ := md["draft"].(string); draft == "e" {
		// Working copies report the record status in mdStatus, not their own.
		// Fetching the real status needs an extra API call per record, so it
		// is left unknown; the engine skips these records anyway.
		return &WorkflowState{Stage: StageWorkingCopy, Status: StatusUnknown}
	}

	status := StatusUnknown

	switch v := raw.(type) {
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			status = WorkflowStatus(n)
		}
	case float64:
		status = WorkflowStatus(int(v))
	}

	stage := StageNeverApproved
	if status == StatusApproved {
		stage = StageApproved
	}

	return &WorkflowState{Stage: stage, Status: status}
}
