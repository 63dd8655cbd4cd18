// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package input loads query molecules and whole job requests from files.
package input

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/molsearch/pkg/types"
)

// DefaultSMILESColumn is the CSV column read when none is given.
const DefaultSMILESColumn = "smiles"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FromSMILES turns bare SMILES strings into molecules, skipping blanks.
// IDs are left empty and filled by position at submission.
func FromSMILES(smiles []string) []types.Molecule {
	out := make([]types.Molecule, 0, len(smiles))
	for _, s := range smiles {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, types.Molecule{SMILES: s})
	}
	return out
}

// ReadCSV loads molecules from a CSV file with a header row. Rows with an
// empty SMILES cell are skipped. Without an id column, or when a row's id
// is blank, the 1-based data row number is used as the id.
func ReadCSV(path, smilesCol, idCol string) ([]types.Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input CSV: %w", err)
	}
	defer f.Close()
	return ParseCSV(f, smilesCol, idCol)
}

// ParseCSV is ReadCSV over an arbitrary reader.
func ParseCSV(r io.Reader, smilesCol, idCol string) ([]types.Molecule, error) {
	if smilesCol == "" {
		smilesCol = DefaultSMILESColumn
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("input CSV has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading input CSV header: %w", err)
	}

	smilesIdx, idIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case smilesCol:
			smilesIdx = i
		case idCol:
			if idCol != "" {
				idIdx = i
			}
		}
	}
	if smilesIdx < 0 {
		return nil, fmt.Errorf("SMILES column %q not found, available: %s", smilesCol, strings.Join(header, ", "))
	}
	if idCol != "" && idIdx < 0 {
		return nil, fmt.Errorf("ID column %q not found, available: %s", idCol, strings.Join(header, ", "))
	}

	var mols []types.Molecule
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading input CSV row %d: %w", row, err)
		}
		smiles := strings.TrimSpace(field(rec, smilesIdx))
		if smiles == "" {
			continue
		}
		id := strings.TrimSpace(field(rec, idIdx))
		if id == "" {
			id = strconv.Itoa(row)
		}
		mols = append(mols, types.Molecule{ID: id, SMILES: smiles})
	}
	return mols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// ReadRequest loads a YAML (or JSON) request file holding every JobRequest
// field except the API key.
func ReadRequest(path string) (types.JobRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.JobRequest{}, fmt.Errorf("reading request file: %w", err)
	}
	// Keys absent from the file keep these values.
	req := types.JobRequest{SimilarityThreshold: types.DefaultSimilarityThreshold}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return types.JobRequest{}, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	return req, nil
}
