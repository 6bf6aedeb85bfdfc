package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/questgrid/internal/app"
	"github.com/specialistvlad/questgrid/internal/auth"
	"github.com/specialistvlad/questgrid/internal/component"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcome of a harness run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Runtime   *app.Runtime
}

// Harness describes one runtime built from suite files.
type Harness struct {
	// Files maps relative paths to suite file contents.
	Files         map[string]string
	Authenticator auth.Authenticator
	Modules       []component.Module
	Workers       int
}

// RunSuite writes the suite files, builds a runtime over them with debug text
// logging, and runs cases in parallel.
func RunSuite(t *testing.T, h Harness, cases ...app.Case) *HarnessResult {
	t.Helper()

	auth.ResetSharedCache()
	t.Cleanup(auth.ResetSharedCache)

	dir := t.TempDir()
	for name, content := range h.Files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	settings, err := app.NewSettings(app.Settings{
		SuitePath: dir,
		LogLevel:  "debug",
		LogFormat: "text",
		Workers:   h.Workers,
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	rt, err := app.New(context.Background(), logBuffer, settings, h.Authenticator, h.Modules...)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err}
	}

	runErr := rt.RunParallel(context.Background(), cases...)

	if os.Getenv("QUESTGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}
	return &HarnessResult{LogOutput: logBuffer.String(), Err: runErr, Runtime: rt}
}
