package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/report/localstore"
)

func TestNewComputesSummary(t *testing.T) {
	suites := map[string]types.SuiteResult{
		"namespace":   {Status: types.StatusHealthy, ExecutionSeconds: 0.1},
		"deployments": {Status: types.StatusPartial, ExecutionSeconds: 0.5},
		"autoscalers": {Status: types.StatusSkipped},
		"services":    {Status: types.StatusError, Error: "boom"},
	}

	rpt := New("run-1", "data-acquisition", "base-data-acquisition", suites)

	assert.Equal(t, 4, rpt.Summary.TotalSuites)
	assert.Equal(t, 2, rpt.Summary.Succeeded)
	assert.Equal(t, 2, rpt.Summary.Failed)
	assert.InDelta(t, 0.6, rpt.Summary.WallSeconds, 0.0001)
	assert.Len(t, rpt.Recommendations, 2)
}

func TestRenderIsIndentedJSON(t *testing.T) {
	rpt := New("run-1", "", "", map[string]types.SuiteResult{
		"namespace": {Status: types.StatusHealthy},
	})

	buf := bytes.Buffer{}
	require.NoError(t, Render(&buf, rpt))

	var decoded types.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Contains(t, buf.String(), "\n  \"runID\"")
}

func TestWriteFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run-1.json")

	rpt := New("run-1", "", "", nil)
	require.NoError(t, WriteFile(path, rpt))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded types.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
}

func TestArchive(t *testing.T) {
	store, err := localstore.NewStore(t.TempDir())
	require.NoError(t, err)

	rpt := New("run-1", "", "", nil)
	require.NoError(t, Archive(store, "run-1", rpt))

	refs, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, refs)

	// same ref cannot be committed twice
	err = Archive(store, "run-1", rpt)
	assert.ErrorIs(t, err, localstore.ErrAlreadyExists)
}
