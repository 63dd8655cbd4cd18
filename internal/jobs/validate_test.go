// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/molsearch/internal/catalog"
	"github.com/pdiddy/molsearch/pkg/types"
)

func validRequest() types.JobRequest {
	return types.JobRequest{
		APIKey:              "k",
		Molecules:           []types.Molecule{{SMILES: "CCO"}, {ID: "aspirin", SMILES: "CC(=O)Oc1ccccc1C(=O)O"}},
		DatabaseName:        "ZINC15",
		SimilarityThreshold: 0.8,
		PropertyRanges: map[string]types.PropertyRange{
			"MW":   {Min: 200, Max: 500},
			"logp": {Min: -1, Max: 5},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	got, err := Validate(validRequest(), catalog.Default())
	require.NoError(t, err)

	assert.Equal(t, types.EngineMolSearch, got.Engine)
	assert.Equal(t, types.SearchESPSimShape, got.SearchType)
	assert.Equal(t, types.QualityFast, got.SearchQuality)
	assert.Equal(t, "1", got.Molecules[0].ID)
	assert.Equal(t, "aspirin", got.Molecules[1].ID)
	assert.Equal(t, map[string]types.PropertyRange{
		"molecular_weight": {Min: 200, Max: 500},
		"logp":             {Min: -1, Max: 5},
	}, got.PropertyRanges)
}

func TestValidate_NilCatalogUsesDefault(t *testing.T) {
	_, err := Validate(validRequest(), nil)
	assert.NoError(t, err)
}

func TestValidate_BoundaryThresholds(t *testing.T) {
	for _, th := range []float64{0, 1} {
		req := validRequest()
		req.SimilarityThreshold = th
		_, err := Validate(req, nil)
		assert.NoError(t, err, "threshold %v", th)
	}
}

func TestValidate_EqualBoundsAllowed(t *testing.T) {
	req := validRequest()
	req.PropertyRanges = map[string]types.PropertyRange{"tpsa": {Min: 90, Max: 90}}
	_, err := Validate(req, nil)
	assert.NoError(t, err)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	req := validRequest()
	req.APIKey = "  "
	_, err := Validate(req, nil)

	var aErr *AuthError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, "validate", aErr.Op)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*types.JobRequest)
		want   string
	}{
		{"no molecules", func(r *types.JobRequest) { r.Molecules = nil }, "at least one query molecule"},
		{"empty smiles", func(r *types.JobRequest) { r.Molecules[1].SMILES = " " }, "molecule 2 (id aspirin): empty SMILES"},
		{"no database", func(r *types.JobRequest) { r.DatabaseName = "" }, "db_name is required"},
		{"threshold above one", func(r *types.JobRequest) { r.SimilarityThreshold = 1.2 }, "sim_th 1.2 out of range"},
		{"negative threshold", func(r *types.JobRequest) { r.SimilarityThreshold = -0.1 }, "sim_th -0.1 out of range"},
		{"nan threshold", func(r *types.JobRequest) { r.SimilarityThreshold = math.NaN() }, "sim_th NaN out of range"},
		{"unknown engine", func(r *types.JobRequest) { r.Engine = "blast" }, `unknown engine "blast"`},
		{"unknown search type", func(r *types.JobRequest) { r.SearchType = "tanimoto" }, `unknown search_type "tanimoto"`},
		{"unknown quality", func(r *types.JobRequest) { r.SearchQuality = "best" }, `unknown search_quality "best"`},
		{"inverted range", func(r *types.JobRequest) {
			r.PropertyRanges["MW"] = types.PropertyRange{Min: 500, Max: 200}
		}, "property MW: min 500 greater than max 200"},
		{"nan bound", func(r *types.JobRequest) {
			r.PropertyRanges["logp"] = types.PropertyRange{Min: math.NaN(), Max: 1}
		}, "property logp: bounds must be numbers"},
		{"invalid property", func(r *types.JobRequest) {
			r.PropertyRanges["colour"] = types.PropertyRange{Min: 0, Max: 1}
		}, "invalid property colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(&req)
			_, err := Validate(req, nil)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Zero(t, vErr.StatusCode)
			assert.Contains(t, vErr.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	req := validRequest()
	req.DatabaseName = ""
	req.SimilarityThreshold = 2
	req.PropertyRanges["bogus"] = types.PropertyRange{}

	_, err := Validate(req, nil)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Problems, 3)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	req := validRequest()
	_, err := Validate(req, nil)
	require.NoError(t, err)

	assert.Empty(t, req.Molecules[0].ID)
	assert.Contains(t, req.PropertyRanges, "MW")
	assert.Empty(t, req.Engine)
}
