// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/molsearch/internal/input"
	"github.com/pdiddy/molsearch/internal/sink"
	"github.com/pdiddy/molsearch/pkg/types"
)

const (
	defaultDatabase  = "ZINC15"
	defaultThreshold = types.DefaultSimilarityThreshold
)

// addRequestFlags registers the flags that describe a search request.
func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArray("smiles", nil, "query molecule SMILES (repeatable)")
	f.String("input-csv", "", "CSV file of query molecules")
	f.String("smiles-col", input.DefaultSMILESColumn, "SMILES column of --input-csv")
	f.String("id-col", "", "ID column of --input-csv (default: row number)")
	f.String("request", "", "YAML request file; flags override its fields")
	f.String("db-name", defaultDatabase, "database to search")
	f.Float64("sim-th", defaultThreshold, "minimum similarity, in [0,1]")
	f.StringArray("prop", nil, "property range NAME=MIN:MAX (repeatable), e.g. MW=200:500")
	f.String("engine", string(types.EngineMolSearch), "job family: molsearch or synthongpt")
	f.String("search-type", string(types.SearchESPSimShape), "espsim_shape, espsim_electrostatic or morgan")
	f.String("search-quality", string(types.QualityFast), "fast, accurate or very_accurate")
	f.Bool("include-properties", true, "return computed properties with each hit; off by default for synthongpt")
}

// addOutputFlags registers the result file flags.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("out", "o", "", "result file (default {run}_{db}_filtered_results.{json|csv})")
	f.String("format", "", "json or csv (default: from --out extension, else json)")
}

// requestFromFlags builds the JobRequest from --request and the request
// flags. A flag overrides the file when set explicitly or when the file
// leaves the field empty. The API key is not set here.
func requestFromFlags(cmd *cobra.Command) (types.JobRequest, error) {
	f := cmd.Flags()
	var req types.JobRequest

	reqFile, _ := f.GetString("request")
	if reqFile != "" {
		r, err := input.ReadRequest(reqFile)
		if err != nil {
			return req, err
		}
		req = r
	}

	mols, err := moleculesFromFlags(cmd)
	if err != nil {
		return req, err
	}
	if len(mols) > 0 {
		req.Molecules = mols
	}

	if v, _ := f.GetString("db-name"); f.Changed("db-name") || req.DatabaseName == "" {
		req.DatabaseName = v
	}
	if v, _ := f.GetFloat64("sim-th"); f.Changed("sim-th") || reqFile == "" {
		req.SimilarityThreshold = v
	}
	if v, _ := f.GetString("engine"); f.Changed("engine") || req.Engine == "" {
		req.Engine = types.Engine(v)
	}
	if v, _ := f.GetString("search-type"); f.Changed("search-type") || req.SearchType == "" {
		req.SearchType = types.SearchType(v)
	}
	if v, _ := f.GetString("search-quality"); f.Changed("search-quality") || req.SearchQuality == "" {
		req.SearchQuality = types.SearchQuality(v)
	}
	if f.Changed("include-properties") {
		include, _ := f.GetBool("include-properties")
		req.IncludeProperties = &include
	}

	props, _ := f.GetStringArray("prop")
	if len(props) > 0 {
		ranges, err := parsePropRanges(props)
		if err != nil {
			return req, err
		}
		if req.PropertyRanges == nil {
			req.PropertyRanges = make(map[string]types.PropertyRange, len(ranges))
		}
		for name, r := range ranges {
			req.PropertyRanges[name] = r
		}
	}
	return req, nil
}

// moleculesFromFlags collects --smiles values followed by --input-csv rows.
func moleculesFromFlags(cmd *cobra.Command) ([]types.Molecule, error) {
	f := cmd.Flags()
	smiles, _ := f.GetStringArray("smiles")
	mols := input.FromSMILES(smiles)

	if csvPath, _ := f.GetString("input-csv"); csvPath != "" {
		smilesCol, _ := f.GetString("smiles-col")
		idCol, _ := f.GetString("id-col")
		fromCSV, err := input.ReadCSV(csvPath, smilesCol, idCol)
		if err != nil {
			return nil, err
		}
		mols = append(mols, fromCSV...)
	}
	return mols, nil
}

// parsePropRanges parses NAME=MIN:MAX entries. Either bound may be empty
// meaning unbounded on that side.
func parsePropRanges(entries []string) (map[string]types.PropertyRange, error) {
	out := make(map[string]types.PropertyRange, len(entries))
	for _, e := range entries {
		name, bounds, ok := strings.Cut(e, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --prop %q: want NAME=MIN:MAX", e)
		}
		lo, hi, ok := strings.Cut(bounds, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --prop %q: want NAME=MIN:MAX", e)
		}
		minV, err := parseBound(lo, -math.MaxFloat64)
		if err != nil {
			return nil, fmt.Errorf("invalid --prop %q: min: %w", e, err)
		}
		maxV, err := parseBound(hi, math.MaxFloat64)
		if err != nil {
			return nil, fmt.Errorf("invalid --prop %q: max: %w", e, err)
		}
		out[name] = types.PropertyRange{Min: minV, Max: maxV}
	}
	return out, nil
}

func parseBound(s string, open float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return open, nil
	}
	return strconv.ParseFloat(s, 64)
}

// outputFromFlags resolves the result format and, when given, the
// absolute output path.
func outputFromFlags(cmd *cobra.Command) (types.OutputFormat, string, error) {
	out, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")

	if format == "" {
		format = string(types.OutputJSON)
		if strings.EqualFold(filepath.Ext(out), ".csv") {
			format = string(types.OutputCSV)
		}
	}
	switch types.OutputFormat(format) {
	case types.OutputJSON, types.OutputCSV:
	default:
		return "", "", fmt.Errorf("unsupported --format %q (use json or csv)", format)
	}

	if out == "" {
		return types.OutputFormat(format), "", nil
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", "", fmt.Errorf("resolving output path: %w", err)
	}
	return types.OutputFormat(format), abs, nil
}

// outputPath returns out, or the default path for the run when empty.
func outputPath(out string, format types.OutputFormat, handleID, db string) string {
	if out != "" {
		return out
	}
	p := sink.DefaultPath(&types.JobResult{HandleID: handleID, Database: db}, format)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
