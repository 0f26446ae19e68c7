package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"gopkg.in/yaml.v3"
)

// decodeFile decodes JSON when the file has a .json extension and YAML otherwise. "-" reads stdin.
func decodeFile(path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return goerr.Wrap(err, "failed to open input file", goerr.V("path", path))
		}
		defer f.Close()
		r = f
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.NewDecoder(r).Decode(v); err != nil {
			return goerr.Wrap(err, "failed to decode JSON input", goerr.V("path", path))
		}
		return nil
	}

	if err := yaml.NewDecoder(r).Decode(v); err != nil {
		return goerr.Wrap(err, "failed to decode YAML input", goerr.V("path", path))
	}
	return nil
}

// loadSnapshots reads a list of patient snapshots. Exams without a time inherit the snapshot time.
func loadSnapshots(path string) ([]*model.Snapshot, error) {
	var snapshots []*model.Snapshot
	if err := decodeFile(path, &snapshots); err != nil {
		return nil, err
	}

	for i, s := range snapshots {
		if s == nil {
			return nil, goerr.New("empty snapshot", goerr.V("path", path), goerr.V("index", i))
		}
		for j := range s.Exams {
			if s.Exams[j].T.IsZero() {
				s.Exams[j].T = s.T
			}
		}
	}
	return snapshots, nil
}

// loadSymptoms reads a list of patient symptoms
func loadSymptoms(path string) ([]model.Symptom, error) {
	var symptoms []model.Symptom
	if err := decodeFile(path, &symptoms); err != nil {
		return nil, err
	}

	for i, s := range symptoms {
		if strings.TrimSpace(s.Name) == "" {
			return nil, goerr.New("symptom name is empty", goerr.V("path", path), goerr.V("index", i))
		}
	}
	return symptoms, nil
}
