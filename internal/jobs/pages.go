// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/molsearch/pkg/types"
)

// Column names the client interprets. Every other column is copied verbatim.
const (
	colInRange    = "in_prop_range"
	colSimilarity = "similarity"
	colID         = "id"

	// queryRowID marks the echo of the query molecule the service puts on
	// the first page.
	queryRowID = "Query Molecule"
)

// pageBody is the JSON body of a page request.
type pageBody struct {
	PropRanges map[string]types.PropertyRange `json:"prop_ranges"`
}

// FetchResults downloads and filters the result pages of every job in the
// handle without checking status. Pages are read in order until one comes
// back short or MaxPages is reached.
func (c *Client) FetchResults(ctx context.Context, handle *types.JobHandle) (*types.JobResult, error) {
	if err := checkHandle("fetch", handle); err != nil {
		return nil, err
	}

	res := &types.JobResult{
		HandleID: handle.ID,
		Database: handle.Request.DatabaseName,
		Queries:  make([]types.QueryResult, 0, len(handle.Jobs)),
	}
	for _, job := range handle.Jobs {
		cols, err := c.fetchJob(ctx, handle.Request, job.Name)
		if err != nil {
			return nil, err
		}
		kept := cols.Rows()
		c.rec.RowsKept(kept)
		c.logger.Info("results fetched",
			slog.String("job", job.Name),
			slog.String("query", job.Query.SMILES),
			slog.Int("hits", kept),
		)
		res.Queries = append(res.Queries, types.QueryResult{Query: job.Query, JobName: job.Name, Columns: cols})
	}
	return res, nil
}

func (c *Client) fetchJob(ctx context.Context, req types.JobRequest, jobName string) (types.Columns, error) {
	out := types.Columns{}
	kept := 0
	for page := 0; page < c.cfg.MaxPages; page++ {
		cols, err := c.fetchPage(ctx, req, jobName, page)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d of job %s: %w", page, jobName, err)
		}
		n := cols.Rows()
		filtered := filterPage(cols, req.SimilarityThreshold)
		kept = appendColumns(out, filtered, kept)

		c.logger.Debug("page fetched",
			slog.String("job", jobName),
			slog.Int("page", page),
			slog.Int("rows", n),
			slog.Int("kept", filtered.Rows()),
		)
		if n < c.cfg.PageSize {
			return out, nil
		}
	}
	c.logger.Warn("result page limit reached, remaining hits skipped",
		slog.String("job", jobName),
		slog.Int("max_pages", c.cfg.MaxPages),
		slog.Int("page_size", c.cfg.PageSize),
	)
	return out, nil
}

// fetchPage requests one page and returns its array-valued columns.
func (c *Client) fetchPage(ctx context.Context, req types.JobRequest, jobName string, page int) (types.Columns, error) {
	params := url.Values{
		"job_name":           {jobName},
		"db_name":            {req.DatabaseName},
		"page_size":          {strconv.Itoa(c.cfg.PageSize)},
		"page_num":           {strconv.Itoa(page)},
		"include_properties": {boolParam(req.WantsProperties())},
		"sim_th":             {strconv.FormatFloat(req.SimilarityThreshold, 'f', -1, 64)},
	}
	ranges := req.PropertyRanges
	if ranges == nil {
		ranges = map[string]types.PropertyRange{}
	}

	body, err := c.do(ctx, "fetch", http.MethodPost, "/get_molsearch_page", params, pageBody{PropRanges: ranges}, req.APIKey)
	if err != nil {
		return nil, err
	}
	cols, err := decodeColumns(body)
	if err != nil {
		return nil, &NetworkError{Op: "fetch", StatusCode: http.StatusOK, Err: err}
	}
	return cols, nil
}

// decodeColumns parses a columnar page. Non-array values (counts, flags)
// are ignored; an empty body or null is an empty page.
func decodeColumns(body []byte) (types.Columns, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return types.Columns{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("unexpected page response: %s", snippet(body))
	}
	cols := types.Columns{}
	for name, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '[' {
			continue
		}
		var values []json.RawMessage
		if err := json.Unmarshal(v, &values); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		cols[name] = values
	}
	return cols, nil
}

// filterPage keeps the rows that satisfy every constraint: in_prop_range
// true (or the column absent), similarity at or above threshold (when
// numeric) and not the echoed query row.
func filterPage(cols types.Columns, threshold float64) types.Columns {
	n := cols.Rows()
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := cell(cols, colInRange, i); ok {
			var in bool
			if err := json.Unmarshal(v, &in); err != nil || !in {
				continue
			}
		}
		if v, ok := cell(cols, colSimilarity, i); ok {
			if sim, ok := number(v); ok && sim < threshold {
				continue
			}
		}
		if v, ok := cell(cols, colID, i); ok {
			var id string
			if json.Unmarshal(v, &id) == nil && id == queryRowID {
				continue
			}
		}
		keep = append(keep, i)
	}

	out := make(types.Columns, len(cols))
	for name, values := range cols {
		sel := make([]json.RawMessage, 0, len(keep))
		for _, i := range keep {
			if i < len(values) {
				sel = append(sel, values[i])
			} else {
				sel = append(sel, json.RawMessage("null"))
			}
		}
		out[name] = sel
	}
	return out
}

// appendColumns appends src onto dst, which already holds have rows. Columns
// missing on either side are padded with null so every column keeps the
// same length. It returns the new row count.
func appendColumns(dst, src types.Columns, have int) int {
	add := src.Rows()
	if add == 0 {
		return have
	}
	for name := range src {
		if _, ok := dst[name]; !ok {
			dst[name] = nulls(have)
		}
	}
	for name, values := range dst {
		values = append(values, src[name]...)
		for len(values) < have+add {
			values = append(values, json.RawMessage("null"))
		}
		dst[name] = values
	}
	return have + add
}

func cell(cols types.Columns, name string, i int) (json.RawMessage, bool) {
	values, ok := cols[name]
	if !ok || i >= len(values) {
		return nil, false
	}
	return values[i], true
}

// number reads a JSON number or a numeric string. null is not a number.
func number(v json.RawMessage) (float64, bool) {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func nulls(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage("null")
	}
	return out
}
