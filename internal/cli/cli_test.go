package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/temirov/repoview/internal/services/clipboard"
	"github.com/temirov/repoview/internal/snapshot"
	"github.com/temirov/repoview/internal/tokenizer"
	"github.com/temirov/repoview/internal/types"
	"github.com/temirov/repoview/internal/utils"
)

type stubCounter struct{}

func (stubCounter) Name() string { return "stub" }

func (stubCounter) CountString(input string) (int, error) {
	return len([]rune(input)), nil
}

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

// runCommand executes the CLI in an isolated home and working directory.
func runCommand(t *testing.T, workingDirectory string, copier clipboard.Copier, arguments ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	rootCommand := NewRootCommand(Dependencies{
		Copier: copier,
		CounterFactory: func(cfg tokenizer.Config) (tokenizer.Counter, string, error) {
			return stubCounter{}, "stub-" + cfg.Model, nil
		},
		WorkingDirectory: workingDirectory,
	})
	var stdout bytes.Buffer
	rootCommand.SetOut(&stdout)
	rootCommand.SetErr(&bytes.Buffer{})
	executeErr := ExecuteWithArguments(context.Background(), rootCommand, arguments)
	return stdout.String(), executeErr
}

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSnapshotCommandFormats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "A")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "B")
	writeFile(t, filepath.Join(root, "dist", "bundle.js"), "x")
	writeFile(t, filepath.Join(root, ".gitignore"), "sub/\n")

	testCases := []struct {
		name             string
		arguments        []string
		expectedContains []string
		unexpected       []string
	}{
		{
			name:             "raw",
			arguments:        []string{"snapshot", root},
			expectedContains: []string{root, "a.txt", "sub/", "b.txt"},
		},
		{
			name:             "json",
			arguments:        []string{"snapshot", "--format", "JSON", root},
			expectedContains: []string{`"type": "directory"`, `"name": "b.txt"`},
		},
		{
			name:             "xml",
			arguments:        []string{"snapshot", "--format", "xml", root},
			expectedContains: []string{"<node>", "<name>a.txt</name>"},
		},
		{
			name:             "exclusion",
			arguments:        []string{"snapshot", "-e", "dist", root},
			expectedContains: []string{"a.txt"},
			unexpected:       []string{"bundle.js"},
		},
		{
			name:             "gitignore",
			arguments:        []string{"snapshot", "--gitignore", root},
			expectedContains: []string{"a.txt", "bundle.js"},
			unexpected:       []string{"b.txt"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			outputText, err := runCommand(t, root, nil, testCase.arguments...)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			for _, expected := range testCase.expectedContains {
				if !strings.Contains(outputText, expected) {
					t.Fatalf("expected %q in output:\n%s", expected, outputText)
				}
			}
			for _, unexpected := range testCase.unexpected {
				if strings.Contains(outputText, unexpected) {
					t.Fatalf("did not expect %q in output:\n%s", unexpected, outputText)
				}
			}
		})
	}
}

func TestSnapshotCommandErrors(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "file.txt")
	writeFile(t, filePath, "x")

	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "missing folder", arguments: []string{"snapshot", filepath.Join(root, "missing")}},
		{name: "file folder", arguments: []string{"snapshot", filePath}},
		{name: "bad format", arguments: []string{"snapshot", "--format", "yaml", root}},
		{name: "missing argument", arguments: []string{"snapshot"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := runCommand(t, root, nil, testCase.arguments...); err == nil {
				t.Fatalf("expected error for %v", testCase.arguments)
			}
		})
	}

	_, err := runCommand(t, root, nil, "snapshot", filePath)
	var pathError *types.InvalidPathError
	if !errors.As(err, &pathError) {
		t.Fatalf("expected InvalidPathError, got %v", err)
	}
}

func TestAggregateCommand(t *testing.T) {
	root := t.TempDir()
	firstPath := filepath.Join(root, "x")
	secondPath := filepath.Join(root, "y")
	writeFile(t, firstPath, "hi")
	writeFile(t, secondPath, "there")
	missingPath := filepath.Join(root, "missing")

	outputText, err := runCommand(t, root, nil, "aggregate", firstPath, missingPath, secondPath)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	expected := "=== " + firstPath + " ===\nhi\n\n" +
		"=== " + missingPath + " ===\n" + types.NotAFileMessage + "\n\n" +
		"=== " + secondPath + " ===\nthere\n\n"
	if outputText != expected {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", outputText, expected)
	}
}

func TestAggregateCommandTokensAndCopy(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "x")
	writeFile(t, filePath, "hello")
	copier := &recordingCopier{}

	outputText, err := runCommand(t, root, copier, "aggregate", "--tokens", "--model", "m", "--copy", "yes", filePath)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !strings.Contains(outputText, "5 tokens (stub-m)") {
		t.Fatalf("expected token summary in output:\n%s", outputText)
	}
	if len(copier.copied) != 1 {
		t.Fatalf("expected one clipboard write, got %d", len(copier.copied))
	}
	if copier.copied[0] != "=== "+filePath+" ===\nhello\n\n" {
		t.Fatalf("unexpected clipboard contents %q", copier.copied[0])
	}

	_, err = runCommand(t, root, copier, "aggregate", "--copy", "no", filePath)
	if err != nil {
		t.Fatalf("aggregate without copy: %v", err)
	}
	if len(copier.copied) != 1 {
		t.Fatalf("expected clipboard untouched, got %d writes", len(copier.copied))
	}
}

func TestAggregateCommandReadsConfiguration(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "x")
	writeFile(t, filePath, "hello")
	writeFile(t, filepath.Join(root, utils.ConfigFileName), "aggregate:\n  format: json\n")

	outputText, err := runCommand(t, root, nil, "aggregate", filePath)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var result types.AggregationResult
	if err := json.Unmarshal([]byte(outputText), &result); err != nil {
		t.Fatalf("expected JSON output: %v\n%s", err, outputText)
	}
	if len(result.Sections) != 1 || result.Sections[0].Content != "hello" {
		t.Fatalf("unexpected sections %+v", result.Sections)
	}
}

func TestChangesCommand(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "project")
	writeFile(t, filepath.Join(folder, "a.txt"), "A")

	savedSnapshot, err := runCommand(t, root, nil, "snapshot", "--format", "json", folder)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	previousPath := filepath.Join(root, "before.json")
	writeFile(t, previousPath, savedSnapshot)

	unchanged, err := runCommand(t, root, nil, "changes", "--previous", previousPath, folder)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if strings.TrimSpace(unchanged) != "No changes" {
		t.Fatalf("expected no changes, got %q", unchanged)
	}

	writeFile(t, filepath.Join(folder, "b.txt"), "B")
	changed, err := runCommand(t, root, nil, "changes", "--previous", previousPath, folder)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if !strings.Contains(changed, "+ "+filepath.Join(folder, "b.txt")) {
		t.Fatalf("expected added entry, got %q", changed)
	}

	if _, err := runCommand(t, root, nil, "changes", "--previous", filepath.Join(root, "absent.json"), folder); err == nil {
		t.Fatalf("expected error for unreadable previous snapshot")
	}
	if _, err := runCommand(t, root, nil, "changes", folder); err == nil {
		t.Fatalf("expected error when --previous is missing")
	}
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()

	outputText, err := runCommand(t, root, nil, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	expectedPath := filepath.Join(root, utils.ConfigFileName)
	if !strings.Contains(outputText, expectedPath) {
		t.Fatalf("expected written path in output, got %q", outputText)
	}
	if _, err := runCommand(t, root, nil, "init"); err == nil {
		t.Fatalf("expected error when configuration exists")
	}
	if _, err := runCommand(t, root, nil, "init", "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestVersionFlag(t *testing.T) {
	outputText, err := runCommand(t, t.TempDir(), nil, "--version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(outputText, "repoview version: ") {
		t.Fatalf("unexpected version output %q", outputText)
	}
}

func TestWatchFolderReportsChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "A")
	builder, err := snapshot.NewBuilder(nil, nil)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks := make(chan time.Time)
	var outputBuffer bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- watchFolder(ctx, watchOptions{builder: builder, folder: root, ticks: ticks, writer: &outputBuffer, logger: nil})
	}()

	ticks <- time.Now()
	writeFile(t, filepath.Join(root, "b.txt"), "B")
	ticks <- time.Now()
	ticks <- time.Now()
	cancel()

	if watchErr := <-done; watchErr != nil {
		t.Fatalf("watch: %v", watchErr)
	}
	expected := "+ " + filepath.Join(root, "b.txt") + " (file)\n"
	if outputBuffer.String() != expected {
		t.Fatalf("unexpected watch output %q, want %q", outputBuffer.String(), expected)
	}
}

func TestWatchFolderRejectsInvalidFolder(t *testing.T) {
	builder, err := snapshot.NewBuilder(nil, nil)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	watchErr := watchFolder(context.Background(), watchOptions{builder: builder, folder: filepath.Join(t.TempDir(), "missing")})
	if watchErr == nil {
		t.Fatalf("expected error for missing folder")
	}
}
