package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoaudit/internal/policy"
	"cryptoaudit/internal/scan"
)

func analysisFixture(verdict policy.Verdict, algorithm string) policy.Analysis {
	return policy.Analysis{
		Finding: scan.Finding{
			Api: "java.security.MessageDigest.getInstance",
			Args: []scan.ArgumentValue{
				{Index: 0, Printable: algorithm},
			},
			Location: scan.Location{MethodSignature: "void digest()", Line: 17},
		},
		PolicyId: "fips",
		RuleId:   "digest-algorithms",
		Verdict:  verdict,
		Reason:   "ALGO_DENIED",
	}
}

func TestWriteText_ExactFieldOrderAndFormat(t *testing.T) {
	results := map[string][]policy.Analysis{
		"com.example.App": {analysisFixture(policy.Fail, "MD5")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []string{"com.example.App"}, results))

	want := "class=com.example.App:17  method=void digest()  api=java.security.MessageDigest.getInstance  " +
		"algorithm=MD5  provider=None  verdict=FAIL  reason=ALGO_DENIED  rule=digest-algorithms\n" +
		"Total findings: 1\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteText_MultipleClassesEachGetOwnTotal(t *testing.T) {
	results := map[string][]policy.Analysis{
		"com.example.App":   {analysisFixture(policy.Fail, "MD5")},
		"com.example.Other": {},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []string{"com.example.App", "com.example.Other"}, results))

	assert.Contains(t, buf.String(), "Total findings: 1\n")
	assert.Contains(t, buf.String(), "Total findings: 0\n")
}

func TestWriteHTML_WritesIndexAndProblemClassPages(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "report")
	results := map[string][]policy.Analysis{
		"com.example.Bad":  {analysisFixture(policy.Fail, "MD5")},
		"com.example.Good": {analysisFixture(policy.Pass, "SHA-256")},
	}

	err := WriteHTML(outDir, "fips", []string{"com.example.Bad", "com.example.Good"}, results)
	require.NoError(t, err)

	assertExists(t, filepath.Join(outDir, "index.html"))
	assertExists(t, filepath.Join(outDir, "com.example.Bad.html"))
	assertNotExists(t, filepath.Join(outDir, "com.example.Good.html"))
	assertExists(t, filepath.Join(outDir, "report.css"))
	assertExists(t, filepath.Join(outDir, "report.js"))

	indexContents, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(indexContents), "com.example.Bad")
	assert.Contains(t, string(indexContents), "com.example.Good")
}

func TestWriteHTML_ClassPageContainsFindingDetails(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "report")
	results := map[string][]policy.Analysis{
		"com.example.Bad": {analysisFixture(policy.Fail, "MD5")},
	}

	require.NoError(t, WriteHTML(outDir, "fips", []string{"com.example.Bad"}, results))

	page, err := os.ReadFile(filepath.Join(outDir, "com.example.Bad.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "MD5")
	assert.Contains(t, string(page), "ALGO_DENIED")
	assert.Contains(t, string(page), "digest-algorithms")
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.NoError(t, err, "expected %s to exist", path)
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected %s not to exist", path)
}
