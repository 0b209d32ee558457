package geonetwork

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const v4PageSize = 20

// clientV4 talks to the GeoNetwork 4 Elasticsearch-backed search API.
type clientV4 struct {
	*client
}

func (c *clientV4) Version() int {
	return 4
}

// v4QueryMappings translates the abstract filter vocabulary to v4 index
// field names.
var v4QueryMappings = map[string]func(string) (string, string){
	"group":     func(v string) (string, string) { return "groupOwner", v },
	"harvested": func(v string) (string, string) { return "isHarvested", strings.ToLower(v) },
	"source":    func(v string) (string, string) { return "sourceCatalogue", v },
	"template":  func(v string) (string, string) { return "isTemplate", v },
	"type":      func(v string) (string, string) { return "resourceType", v },
}

func (c *clientV4) searchBody(query map[string]string, from int) map[string]any {
	body := map[string]any{
		"from": from,
		"size": v4PageSize,
		"sort": []map[string]string{{"changeDate": "asc"}},
		"_source": []string{
			"uuid",
			"resourceTitleObject.default",
			"resourceType",
			"draft",
			"isTemplate",
			"mdStatus",
		},
	}

	expanded := expandQuery(query)
	if len(expanded) == 0 {
		return body
	}

	terms := make([]string, 0, len(expanded))

	for k, v := range expanded {
		if m, ok := v4QueryMappings[k]; ok {
			k, v = m(v)
		}

		terms = append(terms, fmt.Sprintf("+%s:%s", k, v))
	}

	body["query"] = map[string]any{
		"bool": map[string]any{
			"filter": []map[string]any{
				{"query_string": map[string]any{"query": strings.Join(terms, " ")}},
			},
		},
	}

	return body
}

func (c *clientV4) GetRecords(ctx context.Context, query map[string]string) ([]Record, error) {
	c.logger.DebugContext(ctx, "Searching records", "query", query)

	var records []Record

	from := 0

	for {
		hits, err := c.searchHits(ctx, query, from)
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

func (c *clientV4) searchHits(ctx context.Context, query map[string]string, from int) ([]map[string]any, error) {
	body, err := json.Marshal(c.searchBody(query, from))
	if err != nil {
		return nil, err
	}

	data, err := c.request(ctx, "search", http.MethodPost,
		c.api+"/search/records/_search?bucket=metadata", nil,
		"application/json", strings.NewReader(string(body)), "application/json")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Hits struct {
			Hits []map[string]any `json:"hits"`
		} `json:"hits"`
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("search response decode failed: %w", err)
	}

	return payload.Hits.Hits, nil
}

func (c *clientV4) asRecord(hit map[string]any) *Record {
	md, ok := hit["_source"].(map[string]any)
	if !ok {
		return nil
	}

	uuid, ok := md["uuid"].(string)
	if !ok {
		return nil
	}

	var title string

	switch t := md["resourceTitleObject"].(type) {
	case map[string]any:
		title, _ = t["default"].(string)
	case []any:
		// seen in the wild: a list with the real title object first
		if len(t) > 0 {
			if first, ok := t[0].(map[string]any); ok {
				title, _ = first["default"].(string)
			}
		}
	}

	return &Record{
		UUID:  uuid,
		Title: title,
		Type:  metadataTypeOf(md),
		State: workflowStateOf(md),
	}
}

func (c *clientV4) UUIDFilter(uuids []string) map[string]string {
	quoted := make([]string, len(uuids))
	for i, u := range uuids {
		quoted[i] = fmt.Sprintf("%q", u)
	}

	return map[string]string{"uuid": "[" + strings.Join(quoted, ",") + "]"}
}
