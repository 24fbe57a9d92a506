package tom

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"oracletom/internal/services"
)

const (
	hotTransientsPage = "elasticc2/gethottransients"
	sqlQueryPage      = "db/runsqlquery/"
)

// HotQuery selects recently detected transients.
type HotQuery struct {
	DetectedInLastDays float64
	MJDNow             float64
	// DetectedSinceMJD is sent only when positive.
	DetectedSinceMJD float64
	// CheatGentypes restricts results to simulated truth types when non-empty.
	CheatGentypes []int
}

func (q HotQuery) payload() map[string]any {
	body := map[string]any{
		"detected_in_last_days": q.DetectedInLastDays,
		"mjd_now":               q.MJDNow,
	}
	if q.DetectedSinceMJD > 0 {
		body["detected_since_mjd"] = q.DetectedSinceMJD
	}
	if len(q.CheatGentypes) > 0 {
		body["cheat_gentypes"] = q.CheatGentypes
	}
	return body
}

// HotTransient is one entry of the hot-transient listing. Only the object id
// is typed; everything else the TOM returns is kept in Extra.
type HotTransient struct {
	ObjectID int64
	Extra    Row
}

type hotTransientsResponse struct {
	DiaObject []Row `json:"diaobject"`
}

// HotTransients returns the transients detected within the query window, in
// the order the TOM lists them.
func (c *Client) HotTransients(ctx context.Context, query HotQuery) ([]HotTransient, error) {
	var resp hotTransientsResponse
	if err := c.PostJSON(ctx, hotTransientsPage, query.payload(), &resp); err != nil {
		return nil, err
	}
	out := make([]HotTransient, 0, len(resp.DiaObject))
	for i, row := range resp.DiaObject {
		id, err := row.Int64("objectid")
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "tom", "hot transients", fmt.Sprintf("entry %d", i), err)
		}
		extra := make(Row, len(row))
		for key, value := range row {
			if key != "objectid" {
				extra[key] = value
			}
		}
		out = append(out, HotTransient{ObjectID: id, Extra: extra})
	}
	return out, nil
}

type sqlQueryRequest struct {
	Query   string         `json:"query"`
	Subdict map[string]any `json:"subdict"`
}

type sqlQueryResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Rows   []Row  `json:"rows"`
}

// RunSQL executes a read-only query through the TOM's db/runsqlquery endpoint.
// Parameters use psycopg2 "%(name)s" placeholders bound from subdict.
func (c *Client) RunSQL(ctx context.Context, query string, subdict map[string]any) ([]Row, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "tom", "run sql", "query must not be empty", nil)
	}
	if subdict == nil {
		subdict = map[string]any{}
	}
	var resp sqlQueryResponse
	if err := c.PostJSON(ctx, sqlQueryPage, sqlQueryRequest{Query: query, Subdict: subdict}, &resp); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "ok", "":
	case "error":
		return nil, services.Wrap(services.ErrValidation, "tom", "run sql", strings.TrimSpace(resp.Error), nil)
	default:
		return nil, services.Wrap(services.ErrValidation, "tom", "run sql", "unexpected status "+strconv.Quote(resp.Status), nil)
	}
	return resp.Rows, nil
}

// Row is a loosely typed result row as decoded from the TOM's JSON.
type Row map[string]any

// Int64 returns the integer value of key.
func (r Row) Int64(key string) (int64, error) {
	value, ok := r[key]
	if !ok || value == nil {
		return 0, fmt.Errorf("column %q missing", key)
	}
	switch v := value.(type) {
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return id, nil
		}
		f, err := v.Float64()
		if err != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("column %q: %q is not an integer", key, v.String())
		}
		return int64(f), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("column %q: %v is not an integer", key, v)
		}
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", key, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("column %q: unsupported type %T", key, value)
	}
}

// Float64 returns the numeric value of key. ok is false for missing, null, or
// non-numeric values.
func (r Row) Float64(key string) (float64, bool) {
	return ToFloat(r[key])
}

// String returns the string value of key, or "" when absent.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// ToFloat converts a decoded JSON value to float64. Strings are parsed so
// Postgres numeric columns serialized as text still work.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
