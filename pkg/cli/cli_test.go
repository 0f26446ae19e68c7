package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/medgraph/pkg/cli"
	"github.com/m-mizutani/medgraph/pkg/usecase/diagnostic"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSnapshots(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, "record.yaml", `
- t: 2024-01-02T09:00:00Z
  descriptions:
    - cough and runny nose
  exams:
    - name: Nasal exam
      description: lots of clear mucous
- t: 2024-01-01T09:00:00Z
  descriptions:
    - mild fever
`)
		snapshots, err := cli.LoadSnapshotsForTest(path)
		gt.NoError(t, err)
		gt.A(t, snapshots).Length(2)
		gt.Equal(t, snapshots[0].Descriptions, []string{"cough and runny nose"})
		gt.A(t, snapshots[0].Exams).Length(1)
		gt.Equal(t, snapshots[0].Exams[0].Name, "Nasal exam")
		// exam time falls back to the snapshot time
		gt.True(t, snapshots[0].Exams[0].T.Equal(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)))
	})

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "record.json", `[
  {"t": "2024-01-01T09:00:00Z", "exams": [{"t": "2024-01-01T10:00:00Z", "description": "pulse 120"}]}
]`)
		snapshots, err := cli.LoadSnapshotsForTest(path)
		gt.NoError(t, err)
		gt.A(t, snapshots).Length(1)
		gt.True(t, snapshots[0].Exams[0].T.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("broken json", func(t *testing.T) {
		_, err := cli.LoadSnapshotsForTest(writeFile(t, "record.json", `{"t":`))
		gt.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := cli.LoadSnapshotsForTest(filepath.Join(t.TempDir(), "none.yaml"))
		gt.Error(t, err)
	})
}

func TestLoadSymptoms(t *testing.T) {
	symptoms, err := cli.LoadSymptomsForTest(writeFile(t, "symptoms.yaml", `
- name: Fever
  description: High body temperature
- name: Cough
`))
	gt.NoError(t, err)
	gt.A(t, symptoms).Length(2)
	gt.Equal(t, symptoms[0].Name, "Fever")
	gt.Equal(t, symptoms[0].Description, "High body temperature")

	_, err = cli.LoadSymptomsForTest(writeFile(t, "symptoms.yaml", `
- description: no name
`))
	gt.Error(t, err)
}

func TestParseAnswer(t *testing.T) {
	for input, want := range map[string]diagnostic.Answer{
		"y":       diagnostic.AnswerYes,
		" YES ":   diagnostic.AnswerYes,
		"n":       diagnostic.AnswerNo,
		"No":      diagnostic.AnswerNo,
		"?":       diagnostic.AnswerUnknown,
		"unknown": diagnostic.AnswerUnknown,
	} {
		got, ok := cli.ParseAnswerForTest(input)
		gt.True(t, ok).Describe(input)
		gt.Equal(t, got, want)
	}

	_, ok := cli.ParseAnswerForTest("maybe")
	gt.False(t, ok)
}

func TestRunRequiresInput(t *testing.T) {
	err := cli.Run(context.Background(), []string{"medgraph", "build"})
	gt.V(t, err).NotNil()
	gt.Equal(t, err.Code, 1)
}
