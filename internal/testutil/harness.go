// Package testutil provides the shared harness for session-level tests: a
// thread-safe output buffer, temp keymap trees and scripted key input.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/weft/internal/app"
	"github.com/vk/weft/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
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

// HarnessResult holds the outcomes of one scripted editing session.
type HarnessResult struct {
	Output        string
	Err           error
	App           *app.App
	WorkspacePath string
}

// RunSession writes the given keymap files into a temp tree, starts an app
// over them and feeds it the key script, one whitespace-separated chord
// token at a time. Startup panics come back as errors, mirroring the
// binary's behavior.
func RunSession(t *testing.T, keymapFiles map[string]string, script string, extra ...registry.Module) *HarnessResult {
	t.Helper()
	return RunSessionWithContext(context.Background(), t, keymapFiles, script, extra...)
}

// RunSessionWithContext is RunSession with a caller-supplied context.
func RunSessionWithContext(ctx context.Context, t *testing.T, keymapFiles map[string]string, script string, extra ...registry.Module) *HarnessResult {
	t.Helper()
	return runSession(ctx, t, "", keymapFiles, script, extra...)
}

// RunSessionAt is RunSession over an existing workspace file.
func RunSessionAt(t *testing.T, workspacePath string, keymapFiles map[string]string, script string, extra ...registry.Module) *HarnessResult {
	t.Helper()
	return runSession(context.Background(), t, workspacePath, keymapFiles, script, extra...)
}

func runSession(ctx context.Context, t *testing.T, workspacePath string, keymapFiles map[string]string, script string, extra ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	keymapDir := filepath.Join(tmpDir, "keymap")
	require.NoError(t, os.Mkdir(keymapDir, 0755))
	for name, content := range keymapFiles {
		filePath := filepath.Join(keymapDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	if workspacePath == "" {
		workspacePath = filepath.Join(tmpDir, "workspace.weft")
	}
	appConfig, err := app.NewConfig(app.Config{
		KeymapPath:    keymapDir,
		WorkspacePath: workspacePath,
		LogFormat:     "text",
		LogLevel:      "debug",
	})
	require.NoError(t, err)

	out := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(out, appConfig, extra...)
	}()
	if panicErr != nil {
		return &HarnessResult{
			Output:        out.String(),
			Err:           fmt.Errorf("application startup panicked: %v", panicErr),
			WorkspacePath: workspacePath,
		}
	}

	runErr := testApp.Run(ctx, strings.NewReader(script))
	return &HarnessResult{
		Output:        out.String(),
		Err:           runErr,
		App:           testApp,
		WorkspacePath: workspacePath,
	}
}
