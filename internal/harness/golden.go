package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablemirror/internal/value"
)

// RunWithGolden runs a scenario and compares its canonical trace against
// testdata/golden/<name>.golden.
//
// Update golden files with: go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	require.NoError(t, err, "scenario execution failed")

	data, err := value.MarshalCanonical(result.Snapshot())
	require.NoError(t, err, "failed to marshal trace")
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}
