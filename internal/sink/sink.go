// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink writes filtered job results to disk.
//
// JSON output is an object keyed by query SMILES whose values are the
// column maps returned by the service. CSV output has one row per hit with
// the columns query_id, query_smiles, hit_smiles, hit_id, similarity,
// followed by any remaining columns in name order.
package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/molsearch/pkg/types"
)

// csvHeader lists the fixed CSV columns.
var csvHeader = []string{"query_id", "query_smiles", "hit_smiles", "hit_id", "similarity"}

// Columns consumed by the fixed CSV fields or used only for filtering.
var consumed = map[string]bool{"smiles": true, "id": true, "similarity": true, "in_prop_range": true}

// catalogSuffix is appended to hit ids by some databases.
const catalogSuffix = "-DMCH"

// DefaultPath returns {handleID}_{db}_filtered_results.{json|csv}.
func DefaultPath(res *types.JobResult, format types.OutputFormat) string {
	ext := "json"
	if format == types.OutputCSV {
		ext = "csv"
	}
	db := strings.NewReplacer("/", "-", "\\", "-", " ", "_").Replace(res.Database)
	return fmt.Sprintf("%s_%s_filtered_results.%s", res.HandleID, db, ext)
}

// Write encodes res and places it at path atomically: the data goes to a
// temporary file in the destination directory that is renamed over path.
// On error nothing is left behind.
func Write(path string, format types.OutputFormat, res *types.JobResult) error {
	if res == nil {
		return errors.New("no results to write")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".molsearch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	encErr := Encode(tmpFile, format, res)
	closeErr := tmpFile.Close()
	if encErr != nil {
		os.Remove(tmpPath)
		return encErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Encode writes res to w in the given format.
func Encode(w io.Writer, format types.OutputFormat, res *types.JobResult) error {
	switch format {
	case types.OutputJSON, "":
		return encodeJSON(w, res)
	case types.OutputCSV:
		return encodeCSV(w, res)
	default:
		return fmt.Errorf("unsupported output format %q (use json or csv)", format)
	}
}

func encodeJSON(w io.Writer, res *types.JobResult) error {
	out := make(map[string]types.Columns, len(res.Queries))
	for _, q := range res.Queries {
		out[queryKey(out, q.Query)] = q.Columns
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "   ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON results: %w", err)
	}
	return nil
}

// queryKey is the query SMILES; a repeated SMILES is disambiguated with
// its query id.
func queryKey(seen map[string]types.Columns, m types.Molecule) string {
	if _, dup := seen[m.SMILES]; !dup {
		return m.SMILES
	}
	return fmt.Sprintf("%s (%s)", m.SMILES, m.ID)
}

func encodeCSV(w io.Writer, res *types.JobResult) error {
	extra := extraColumns(res)
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, csvHeader...), extra...)); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, q := range res.Queries {
		for i := 0; i < q.Columns.Rows(); i++ {
			row := []string{
				q.Query.ID,
				q.Query.SMILES,
				text(q.Columns, "smiles", i),
				strings.TrimSuffix(text(q.Columns, "id", i), catalogSuffix),
				text(q.Columns, "similarity", i),
			}
			for _, name := range extra {
				row = append(row, text(q.Columns, name, i))
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	return nil
}

// extraColumns lists every column not covered by the fixed header, sorted.
func extraColumns(res *types.JobResult) []string {
	set := map[string]bool{}
	for _, q := range res.Queries {
		for name := range q.Columns {
			if !consumed[name] {
				set[name] = true
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// text renders one cell: strings unquoted, null or missing as empty, any
// other JSON value verbatim.
func text(cols types.Columns, name string, i int) string {
	values := cols[name]
	if i >= len(values) {
		return ""
	}
	v := bytes.TrimSpace(values[i])
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}
