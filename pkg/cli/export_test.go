package cli

import "github.com/m-mizutani/medgraph/pkg/usecase/diagnostic"

func ParseAnswerForTest(line string) (diagnostic.Answer, bool) {
	return parseAnswer(line)
}

var (
	LoadSnapshotsForTest = loadSnapshots
	LoadSymptomsForTest  = loadSymptoms
)
