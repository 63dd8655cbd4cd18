// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/molsearch/internal/catalog"
	"github.com/pdiddy/molsearch/pkg/types"
)

// Validate checks a request before anything is sent. A missing API key is
// an AuthError; every other problem is collected into one ValidationError.
// On success it returns the request with defaults applied and property
// names rewritten to their canonical form.
func Validate(req types.JobRequest, cat *catalog.Catalog) (types.JobRequest, error) {
	req = req.WithDefaults()

	if strings.TrimSpace(req.APIKey) == "" {
		return req, &AuthError{Op: "validate", Detail: "missing API key (set --api-key, CHEESE_API_KEY or .secrets/cheese-api-key)"}
	}

	var problems []string

	if len(req.Molecules) == 0 {
		problems = append(problems, "at least one query molecule is required")
	}
	for i, m := range req.Molecules {
		if strings.TrimSpace(m.SMILES) == "" {
			problems = append(problems, fmt.Sprintf("molecule %d (id %s): empty SMILES", i+1, m.ID))
		}
	}

	if strings.TrimSpace(req.DatabaseName) == "" {
		problems = append(problems, "db_name is required")
	}

	th := req.SimilarityThreshold
	if math.IsNaN(th) || th < 0 || th > 1 {
		problems = append(problems, fmt.Sprintf("sim_th %v out of range [0,1]", th))
	}

	switch req.Engine {
	case types.EngineMolSearch, types.EngineSynthonGPT:
	default:
		problems = append(problems, fmt.Sprintf("unknown engine %q (use molsearch or synthongpt)", req.Engine))
	}
	switch req.SearchType {
	case types.SearchESPSimShape, types.SearchESPSimElectrostatic, types.SearchMorgan:
	default:
		problems = append(problems, fmt.Sprintf("unknown search_type %q (use espsim_shape, espsim_electrostatic or morgan)", req.SearchType))
	}
	switch req.SearchQuality {
	case types.QualityFast, types.QualityAccurate, types.QualityVeryAccurate:
	default:
		problems = append(problems, fmt.Sprintf("unknown search_quality %q (use fast, accurate or very_accurate)", req.SearchQuality))
	}

	names := make([]string, 0, len(req.PropertyRanges))
	for name := range req.PropertyRanges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := req.PropertyRanges[name]
		switch {
		case math.IsNaN(r.Min) || math.IsNaN(r.Max):
			problems = append(problems, fmt.Sprintf("property %s: bounds must be numbers", name))
		case r.Min > r.Max:
			problems = append(problems, fmt.Sprintf("property %s: min %v greater than max %v", name, r.Min, r.Max))
		}
	}

	if cat == nil {
		cat = catalog.Default()
	}
	canonical, unknown := cat.Canonicalize(req.PropertyRanges)
	for _, name := range unknown {
		problems = append(problems, fmt.Sprintf("invalid property %s (run `molsearch properties` for valid names)", name))
	}

	if len(problems) > 0 {
		return req, &ValidationError{Op: "validate", Problems: problems}
	}

	req.PropertyRanges = canonical
	return req, nil
}
