package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/handoff"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/testutil"
)

// RegisterCLISteps registers the command line steps.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^a frame "([^"]*)" with a ([A-Z_0-9]+) barcode "([^"]*)"$`, testCtx.aFrameWithBarcode)
	sc.Step(`^a frame "([^"]*)" with a ([A-Z_0-9]+) barcode "([^"]*)" rotated by (\d+) degrees$`,
		testCtx.aRotatedFrameWithBarcode)
	sc.Step(`^a blank frame "([^"]*)"$`, testCtx.aBlankFrame)
	sc.Step(`^a hand-off file containing:$`, testCtx.aHandoffFileContaining)
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the reported barcode list should be:$`, testCtx.theReportedListShouldBe)
	sc.Step(`^the hand-off file should list:$`, testCtx.theHandoffFileShouldList)
	sc.Step(`^(\d+) overlay images? should be written$`, testCtx.overlayImagesShouldBeWritten)
}

func (testCtx *TestContext) writeFrame(name string, cfg testutil.SymbolConfig) error {
	img, err := testutil.GenerateBarcodeFrame(cfg)
	if err != nil {
		return err
	}
	return testutil.WritePNG(img, filepath.Join(testCtx.FramesDir, name))
}

func (testCtx *TestContext) aFrameWithBarcode(name, symbology, payload string) error {
	return testCtx.aRotatedFrameWithBarcode(name, symbology, payload, 0)
}

func (testCtx *TestContext) aRotatedFrameWithBarcode(name, symbology, payload string, rotation int) error {
	sym, err := barcode.ParseSymbology(symbology)
	if err != nil {
		return err
	}
	cfg := testutil.DefaultSymbolConfig(sym, payload)
	cfg.Rotation = rotation
	return testCtx.writeFrame(name, cfg)
}

func (testCtx *TestContext) aBlankFrame(name string) error {
	return testutil.WritePNG(testutil.BlankFrame(testutil.SmallFrame), filepath.Join(testCtx.FramesDir, name))
}

func (testCtx *TestContext) aHandoffFileContaining(doc *godog.DocString) error {
	return os.WriteFile(testCtx.HandoffFile, []byte(doc.Content), 0o600)
}

// iRunCommand executes a matrixscan command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "matrixscan" {
		return fmt.Errorf("unsupported command %q", parts[0])
	}
	testCtx.runCommand(parts[1:])
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// tableBarcodes reads a | type | value | table with a header row.
func tableBarcodes(table *godog.Table) ([]results.Barcode, error) {
	if len(table.Rows) == 0 || len(table.Rows[0].Cells) != 2 {
		return nil, errors.New("expected a two column table with a header row")
	}
	out := []results.Barcode{}
	for _, row := range table.Rows[1:] {
		out = append(out, results.Barcode{Type: row.Cells[0].Value, Value: row.Cells[1].Value})
	}
	return out, nil
}

func compareLists(what string, got, want []results.Barcode) error {
	if !slices.Equal(got, want) {
		return fmt.Errorf("%s is %v, want %v", what, got, want)
	}
	return nil
}

func (testCtx *TestContext) theReportedListShouldBe(table *godog.Table) error {
	want, err := tableBarcodes(table)
	if err != nil {
		return err
	}
	var report struct {
		Barcodes []results.Barcode `json:"barcodes"`
	}
	out := testCtx.LastOutput
	if i := strings.Index(out, "{"); i >= 0 {
		out = out[i:]
	}
	if err := json.NewDecoder(strings.NewReader(out)).Decode(&report); err != nil {
		return fmt.Errorf("output is not a JSON report: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return compareLists("reported list", report.Barcodes, want)
}

func (testCtx *TestContext) theHandoffFileShouldList(table *godog.Table) error {
	want, err := tableBarcodes(table)
	if err != nil {
		return err
	}
	got, err := handoff.ReadFile(testCtx.HandoffFile)
	if err != nil {
		return err
	}
	return compareLists("hand-off list", got, want)
}

func (testCtx *TestContext) overlayImagesShouldBeWritten(n int) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.OverlayDir, "*_overlay.png"))
	if err != nil {
		return err
	}
	if len(matches) != n {
		return fmt.Errorf("found %d overlay images, want %d", len(matches), n)
	}
	return nil
}
