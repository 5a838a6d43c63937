package support

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/matrixscan/internal/server"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	Root         *cobra.Command
	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int

	// Scenario files
	TempDir     string
	FramesDir   string
	HandoffFile string
	OverlayDir  string

	// Live server state
	Server     *server.Server
	HTTPServer *HTTPTestServerWrapper
	Conn       *websocket.Conn
	SessionID  string
	Received   []WSMessage
}

// NewTestContext creates a scenario context running commands on root.
func NewTestContext(root *cobra.Command) (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "matrixscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		Root:        root,
		TempDir:     tempDir,
		FramesDir:   filepath.Join(tempDir, "frames"),
		HandoffFile: filepath.Join(tempDir, "scanned.json"),
		OverlayDir:  filepath.Join(tempDir, "overlays"),
	}, nil
}

// Cleanup stops the server and removes the scenario's files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.Conn != nil {
		_ = testCtx.Conn.Close()
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, err)
	}
	resetFlags(testCtx.Root)
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// substituteCommandVariables expands {frames}, {handoff}, {overlays} and {tmp}.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.NewReplacer(
		"{frames}", testCtx.FramesDir,
		"{handoff}", testCtx.HandoffFile,
		"{overlays}", testCtx.OverlayDir,
		"{tmp}", testCtx.TempDir,
	).Replace(command)
}

// runCommand executes the root command in-process.
func (testCtx *TestContext) runCommand(args []string) {
	buf := new(bytes.Buffer)
	testCtx.Root.SetOut(buf)
	testCtx.Root.SetErr(buf)
	testCtx.Root.SetArgs(args)
	err := testCtx.Root.Execute()
	testCtx.Root.SetArgs(nil)
	resetFlags(testCtx.Root)

	testCtx.LastOutput = buf.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
		testCtx.LastOutput += err.Error() + "\n"
	}
}

// resetFlags restores every flag default so runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
