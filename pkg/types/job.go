// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for molsearch: the job
// request submitted to the Search Service, the handle returned by a
// submission, and the filtered result written to disk.
package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// Engine selects which Search Service job family a request is submitted to.
type Engine string

const (
	// EngineMolSearch is the similarity search job family with a status endpoint.
	EngineMolSearch Engine = "molsearch"

	// EngineSynthonGPT is the generative search job family. It has no status
	// endpoint; completion is detected by polling the first result page.
	EngineSynthonGPT Engine = "synthongpt"
)

// SearchType selects the similarity metric used by the molsearch engine.
type SearchType string

const (
	SearchESPSimShape         SearchType = "espsim_shape"
	SearchESPSimElectrostatic SearchType = "espsim_electrostatic"
	SearchMorgan              SearchType = "morgan"
)

// SearchQuality trades search speed for recall.
type SearchQuality string

const (
	QualityFast         SearchQuality = "fast"
	QualityAccurate     SearchQuality = "accurate"
	QualityVeryAccurate SearchQuality = "very_accurate"
)

// Molecule is one query molecule.
type Molecule struct {
	// ID labels the query in CSV output. Empty IDs are filled with the
	// 1-based position of the molecule in the request.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// SMILES is the query structure in SMILES notation.
	SMILES string `json:"smiles" yaml:"smiles"`
}

// PropertyRange bounds a computed descriptor or ADMET prediction. Both
// bounds are inclusive.
type PropertyRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// DefaultSimilarityThreshold is the minimum similarity applied when a
// request does not set one.
const DefaultSimilarityThreshold = 0.7

// JobRequest is everything needed to submit one search-and-filter job.
// It is built once per invocation and not modified afterwards.
type JobRequest struct {
	// APIKey authenticates against the Search Service (X-API-Key header).
	APIKey string `json:"-" yaml:"-"`

	Molecules           []Molecule               `json:"molecules" yaml:"molecules"`
	DatabaseName        string                   `json:"db_name" yaml:"db_name"`
	SimilarityThreshold float64                  `json:"sim_th" yaml:"sim_th"`
	PropertyRanges      map[string]PropertyRange `json:"prop_ranges,omitempty" yaml:"prop_ranges,omitempty"`

	Engine        Engine        `json:"engine" yaml:"engine"`
	SearchType    SearchType    `json:"search_type" yaml:"search_type"`
	SearchQuality SearchQuality `json:"search_quality" yaml:"search_quality"`

	// IncludeProperties asks the service to return property columns with
	// each hit. Nil means the engine default: on for molsearch, off for
	// synthongpt.
	IncludeProperties *bool `json:"include_properties,omitempty" yaml:"include_properties,omitempty"`
}

// WantsProperties resolves IncludeProperties against the engine default.
func (r JobRequest) WantsProperties() bool {
	if r.IncludeProperties != nil {
		return *r.IncludeProperties
	}
	return r.Engine != EngineSynthonGPT
}

// WithDefaults returns a copy of r with empty enum fields set to the
// service defaults.
func (r JobRequest) WithDefaults() JobRequest {
	if r.Engine == "" {
		r.Engine = EngineMolSearch
	}
	if r.SearchType == "" {
		r.SearchType = SearchESPSimShape
	}
	if r.SearchQuality == "" {
		r.SearchQuality = QualityFast
	}
	if r.IncludeProperties == nil {
		include := r.WantsProperties()
		r.IncludeProperties = &include
	}
	mols := make([]Molecule, len(r.Molecules))
	for i, m := range r.Molecules {
		if m.ID == "" {
			m.ID = strconv.Itoa(i + 1)
		}
		mols[i] = m
	}
	r.Molecules = mols
	return r
}

// RemoteJob pairs a query molecule with the job name the service assigned to it.
type RemoteJob struct {
	Query Molecule `json:"query" yaml:"query"`
	Name  string   `json:"job_name" yaml:"job_name"`
}

// JobHandle is returned by a successful submission. The service accepts a
// single query molecule per job, so a request with N molecules yields one
// handle carrying N remote jobs in request order.
type JobHandle struct {
	ID          string      `json:"id" yaml:"id"`
	Jobs        []RemoteJob `json:"jobs" yaml:"jobs"`
	Request     JobRequest  `json:"request" yaml:"request"`
	SubmittedAt time.Time   `json:"submitted_at" yaml:"submitted_at"`
}

// JobStatus is the normalized state of a remote job.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Columns is the columnar page layout returned by the service: one entry
// per column name, each holding one raw JSON value per row.
type Columns map[string][]json.RawMessage

// Rows returns the number of rows, taken from the longest column.
func (c Columns) Rows() int {
	n := 0
	for _, v := range c {
		if len(v) > n {
			n = len(v)
		}
	}
	return n
}

// QueryResult holds the filtered hits of one query molecule.
type QueryResult struct {
	Query   Molecule `json:"query"`
	JobName string   `json:"job_name"`
	Columns Columns  `json:"columns"`
}

// JobResult is the filtered payload of every job in a handle, in request order.
type JobResult struct {
	HandleID string        `json:"handle_id"`
	Database string        `json:"db_name"`
	Queries  []QueryResult `json:"queries"`
}

// Hits returns the total number of rows across all queries.
func (r *JobResult) Hits() int {
	total := 0
	for _, q := range r.Queries {
		total += q.Columns.Rows()
	}
	return total
}
