package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roboco-io/articlehtml/internal/config"
	"github.com/roboco-io/articlehtml/internal/plugins"
	"github.com/roboco-io/articlehtml/internal/tree"
	"github.com/spf13/cobra"
)

func newTestCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func useConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	old := appConfig
	appConfig = cfg
	t.Cleanup(func() { appConfig = old })
}

func TestSetVersion(t *testing.T) {
	oldVersion := version
	defer func() { version = oldVersion }()

	SetVersion("1.2.3")
	if version != "1.2.3" {
		t.Errorf("expected version '1.2.3', got '%s'", version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "articlehtml" {
		t.Errorf("expected Use 'articlehtml', got '%s'", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("expected persistent flag 'config' to exist")
	}
}

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("expected Use 'version', got '%s'", versionCmd.Use)
	}

	if versionCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{normalizeCmd, "normalize <file>", []string{"output", "sanitize", "minify", "verbose", "quiet"}},
		{extractCmd, "extract <file>", []string{"output", "format", "ids", "sanitize", "pretty"}},
		{convertCmd, "convert <file>", []string{"output", "to", "sanitize", "minify", "verbose", "quiet"}},
	}

	for _, tc := range tests {
		t.Run(tc.use, func(t *testing.T) {
			if tc.cmd.Use != tc.use {
				t.Errorf("expected Use '%s', got '%s'", tc.use, tc.cmd.Use)
			}
			for _, flag := range tc.flags {
				if tc.cmd.Flags().Lookup(flag) == nil {
					t.Errorf("expected flag '%s' to exist", flag)
				}
			}
		})
	}
}

func TestConfigCommand(t *testing.T) {
	if configCmd.Use != "config" {
		t.Errorf("expected Use 'config', got '%s'", configCmd.Use)
	}

	// Check subcommands exist
	subcommands := []string{"show", "init", "set", "path"}
	for _, name := range subcommands {
		found := false
		for _, cmd := range configCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand '%s' to exist", name)
		}
	}
}

func TestRunNormalize(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<p>hello</p>")

	cmd, stdout, _ := newTestCmd()
	if err := runNormalize(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "<section><p>hello</p></section>\n"
	if stdout.String() != expected {
		t.Errorf("expected %q, got %q", expected, stdout.String())
	}
}

func TestRunNormalizeStdin(t *testing.T) {
	useConfig(t, config.DefaultConfig())

	cmd, stdout, _ := newTestCmd()
	cmd.SetIn(strings.NewReader("hello"))
	if err := runNormalize(cmd, []string{"-"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "<section><p>hello</p></section>\n"
	if stdout.String() != expected {
		t.Errorf("expected %q, got %q", expected, stdout.String())
	}
}

func TestRunNormalizeOutputFile(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<section><h2>T</h2></section>")
	outPath := filepath.Join(t.TempDir(), "out.html")

	oldOutput := normalizeOutput
	normalizeOutput = outPath
	defer func() { normalizeOutput = oldOutput }()

	cmd, stdout, stderr := newTestCmd()
	if err := runNormalize(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stdout.Len() != 0 {
		t.Errorf("expected no stdout output, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), outPath) {
		t.Errorf("expected stderr to mention %s, got %q", outPath, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(data) != "<section><h2>T</h2></section>" {
		t.Errorf("unexpected output file content: %q", string(data))
	}
}

func TestRunNormalizeReportsUnsupported(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	in := "<section><figure><p>a</p></figure></section>"
	path := writeTempFile(t, "article.html", in)

	cmd, stdout, stderr := newTestCmd()
	if err := runNormalize(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stdout.String() != in+"\n" {
		t.Errorf("expected unsupported markup to be kept, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "<figure>") {
		t.Errorf("expected a warning about <figure>, got %q", stderr.String())
	}
}

func TestRunNormalizeMissingFile(t *testing.T) {
	useConfig(t, config.DefaultConfig())

	cmd, _, _ := newTestCmd()
	err := runNormalize(cmd, []string{filepath.Join(t.TempDir(), "missing.html")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "파일을 찾을 수 없습니다") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRunConvertMarkdown(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<section><h1>Title</h1><p>Hello <strong>world</strong></p></section>")

	oldTo := convertTo
	convertTo = targetMarkdown
	defer func() { convertTo = oldTo }()

	cmd, stdout, _ := newTestCmd()
	if err := runConvert(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"# Title", "Hello **world**"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("expected output to contain %q, got %q", want, stdout.String())
		}
	}
}

func TestRunConvertHTML(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<b>x</b>")

	oldTo := convertTo
	convertTo = targetHTML
	defer func() { convertTo = oldTo }()

	cmd, stdout, _ := newTestCmd()
	if err := runConvert(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "<section><p><strong>x</strong></p></section>\n"
	if stdout.String() != expected {
		t.Errorf("expected %q, got %q", expected, stdout.String())
	}
}

func TestRunConvertInvalidTarget(t *testing.T) {
	oldTo := convertTo
	convertTo = "pdf"
	defer func() { convertTo = oldTo }()

	cmd, _, _ := newTestCmd()
	if err := runConvert(cmd, []string{"-"}); err == nil {
		t.Error("expected error for unsupported target")
	}
}

func TestRunExtractJSON(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<section><figure><p>a</p></figure></section>")

	cmd, stdout, _ := newTestCmd()
	if err := runExtract(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var x extraction
	if err := json.Unmarshal(stdout.Bytes(), &x); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if x.Tree == nil || x.Tree.Type != tree.TypeDocument {
		t.Fatalf("expected a document tree, got %+v", x.Tree)
	}
	if len(x.Unsupported) != 1 || x.Unsupported[0].Tag != "figure" {
		t.Errorf("expected one unsupported figure, got %+v", x.Unsupported)
	}
}

func TestRunExtractIDs(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<p>a</p>")

	oldIDs := extractIDs
	extractIDs = true
	defer func() { extractIDs = oldIDs }()

	cmd, stdout, _ := newTestCmd()
	if err := runExtract(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var x extraction
	if err := json.Unmarshal(stdout.Bytes(), &x); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	tree.Walk(x.Tree, func(n *tree.Node, _ tree.Path) bool {
		if !n.IsText() && n.ID == "" {
			t.Errorf("expected %s to have an id", n.Type)
		}
		return true
	})
}

func TestRunExtractText(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "article.html", "<p>hello</p>")

	oldFormat := extractFormat
	extractFormat = "text"
	defer func() { extractFormat = oldFormat }()

	cmd, stdout, _ := newTestCmd()
	if err := runExtract(cmd, []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "section\n  paragraph\n    \"hello\"\n"
	if !strings.HasPrefix(stdout.String(), expected) {
		t.Errorf("expected output to start with %q, got %q", expected, stdout.String())
	}
}

func TestFormatOutputUnknownFormat(t *testing.T) {
	if _, err := formatOutput(extraction{Tree: tree.NewDocument()}, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatAsText(t *testing.T) {
	root := tree.NewDocument(tree.NewElement(plugins.TypeSection,
		tree.NewElement(plugins.TypeHeading, tree.NewMarkedText("T", tree.Marks{Bold: true, Code: true})).
			WithProp("level", "3"),
		tree.NewElement(plugins.TypeEmbed).WithData("resource", "image"),
	))

	got := formatAsText(extraction{Tree: root})
	expected := "section\n" +
		"  heading (level=3)\n" +
		"    \"T\" [bold,code]\n" +
		"  embed {resource=image}\n"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestFormatFields(t *testing.T) {
	got := formatFields(map[string]string{"type": "figure", "html": "<figure></figure>", "a": "1"})
	expected := "a=1, html=…, type=figure"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestNewPipelineRejectsDefaultBlock(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Normalize.DefaultBlock = "widget"
	useConfig(t, cfg)

	if _, err := newPipeline(false, false); err == nil {
		t.Error("expected error for a default block that is not a text block")
	}
}

func TestSetupLoadsConfig(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "config.yaml", "convert:\n  minify: true\nlog:\n  level: debug\n  format: json\n")

	oldFile := cfgFile
	cfgFile = path
	defer func() { cfgFile = oldFile }()

	cmd, _, _ := newTestCmd()
	if err := setup(cmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !appConfig.Convert.Minify {
		t.Error("expected minify to be enabled from the config file")
	}
	if appConfig.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", appConfig.Log.Level)
	}
}

func TestSetupInvalidConfig(t *testing.T) {
	useConfig(t, config.DefaultConfig())
	path := writeTempFile(t, "config.yaml", "normalize:\n  min_iterations: -5\n")

	oldFile := cfgFile
	cfgFile = path
	defer func() { cfgFile = oldFile }()

	cmd, _, _ := newTestCmd()
	if err := setup(cmd, nil); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestWritePluginTable(t *testing.T) {
	chain, err := plugins.NewChain()
	if err != nil {
		t.Fatalf("failed to build chain: %v", err)
	}

	var buf bytes.Buffer
	writePluginTable(&buf, chain)
	out := buf.String()

	for _, want := range []string{"플러그인", plugins.TypeParagraph, plugins.TypeEmbed, "text-block", "void"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected table to contain %q", want)
		}
	}
}

func TestConfigSetAndShow(t *testing.T) {
	oldFile := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	defer func() { cfgFile = oldFile }()

	cmd, stdout, _ := newTestCmd()
	if err := runConfigSet(cmd, []string{"convert.minify", "true"}); err != nil {
		t.Fatalf("failed to set config: %v", err)
	}

	stdout.Reset()
	if err := runConfigShow(cmd, nil); err != nil {
		t.Fatalf("failed to show config: %v", err)
	}
	if !strings.Contains(stdout.String(), "minify: true") {
		t.Errorf("expected shown config to contain 'minify: true', got %q", stdout.String())
	}

	err := runConfigSet(cmd, []string{"unknown.key", "1"})
	if err == nil || !strings.Contains(err.Error(), "알 수 없는 설정 키") {
		t.Errorf("expected unknown key error, got %v", err)
	}

	if err := runConfigSet(cmd, []string{"log.level", "chatty"}); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestConfigInit(t *testing.T) {
	oldFile := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	defer func() { cfgFile = oldFile }()

	cmd, _, _ := newTestCmd()
	if err := runConfigInit(cmd, nil); err != nil {
		t.Fatalf("failed to init config: %v", err)
	}

	// Init again should fail without --force
	if err := runConfigInit(cmd, nil); err == nil {
		t.Error("expected error when config already exists")
	}

	configForce = true
	defer func() { configForce = false }()
	if err := runConfigInit(cmd, nil); err != nil {
		t.Errorf("expected --force to overwrite, got %v", err)
	}
}
