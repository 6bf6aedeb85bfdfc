package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertCasePassed checks the log output of a HarnessResult for the pass
// line of the named case.
func AssertCasePassed(t *testing.T, result *HarnessResult, name string) {
	t.Helper()

	marker := fmt.Sprintf("case=%s", name)
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, marker) && strings.Contains(line, "Case passed.") {
			return
		}
	}
	require.Fail(t, "case did not pass", "expected a pass log line for case %q", name)
}
