package geonetwork

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// clientV3 talks to the GeoNetwork 3 search API (`/q`).
type clientV3 struct {
	*client
}

func (c *clientV3) Version() int {
	return 3
}

// v3QueryMappings translates the abstract filter vocabulary to v3 index
// field names.
var v3QueryMappings = map[string]func(string) (string, string){
	"group":     func(v string) (string, string) { return "_groupOwner", v },
	"harvested": func(v string) (string, string) { return "_isHarvested", yesNo(v) },
	"source":    func(v string) (string, string) { return "_source", v },
	"template":  func(v string) (string, string) { return "_isTemplate", v },
	"uuid":      func(v string) (string, string) { return "_uuid", v },
}

func yesNo(v string) string {
	if v == "true" || v == "y" {
		return "y"
	}

	return "n"
}

func (c *clientV3) searchParams(query map[string]string) url.Values {
	params := url.Values{
		"_content_type": {"json"},
		"buildSummary":  {"false"},
		// needed to get info such as the title
		"fast":      {"index"},
		"sortBy":    {"changeDate"},
		"sortOrder": {"reverse"},
	}

	for k, v := range expandQuery(query) {
		if m, ok := v3QueryMappings[k]; ok {
			mk, mv := m(v)
			params.Set(mk, mv)

			continue
		}

		params.Set(k, v)
	}

	return params
}

func (c *clientV3) GetRecords(ctx context.Context, query map[string]string) ([]Record, error) {
	params := c.searchParams(query)

	c.logger.DebugContext(ctx, "Searching records", "params", params.Encode())

	var records []Record

	from := 0

	for {
		hits, err := c.searchHits(ctx, params, from)
		if err != nil {
			return nil, err
		}

		if len(hits) == 0 {
			break
		}

		for _, hit := range hits {
			if rec := c.asRecord(hit); rec != nil {
				records = append(records, *rec)
			}
		}

		from += len(hits)
	}

	return records, nil
}

func (c *clientV3) searchHits(ctx context.Context, params url.Values, from int) ([]map[string]any, error) {
	paged := url.Values{}
	for k, vs := range params {
		paged[k] = vs
	}
	// the v3 'from' parameter starts at 1
	paged.Set("from", strconv.Itoa(from+1))

	var payload struct {
		Metadata any `json:"metadata"`
	}

	if err := c.getJSON(ctx, c.api+"/q", paged, &payload); err != nil {
		return nil, err
	}

	switch hits := payload.Metadata.(type) {
	case []any:
		out := make([]map[string]any, 0, len(hits))

		for _, h := range hits {
			if m, ok := h.(map[string]any); ok {
				out = append(out, m)
			}
		}

		return out, nil
	case map[string]any:
		// When returning a single record, metadata isn't a list.
		return []map[string]any{hits}, nil
	default:
		return nil, nil
	}
}

func (c *clientV3) asRecord(hit map[string]any) *Record {
	info, ok := hit["geonet:info"].(map[string]any)
	if !ok {
		return nil
	}

	uuid, ok := info["uuid"].(string)
	if !ok {
		return nil
	}

	title, _ := hit["defaultTitle"].(string)

	return &Record{
		UUID:  uuid,
		Title: title,
		Type:  metadataTypeOf(hit),
		State: workflowStateOf(hit),
	}
}

func (c *clientV3) UUIDFilter(uuids []string) map[string]string {
	return map[string]string{"_uuid": strings.Join(uuids, " or ")}
}
