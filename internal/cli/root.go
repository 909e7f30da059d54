// Package cli implements the articlehtml command line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roboco-io/articlehtml/internal/config"
	"github.com/roboco-io/articlehtml/internal/convert"
	"github.com/roboco-io/articlehtml/internal/normalize"
	"github.com/roboco-io/articlehtml/internal/plugins"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	cfgFile   string
	appConfig = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "articlehtml",
	Short: "아티클 HTML 정규화 및 변환 도구",
	Long: `블록 기반 아티클 에디터의 HTML을 문서 트리로 읽고, 정규화한 뒤
다시 HTML(또는 Markdown)로 직렬화합니다.

정규화는 구조 규칙(섹션, 목록, 표, 임베드 여백 등)을 만족할 때까지
트리를 반복 수정합니다. 지원하지 않는 요소는 원본 HTML 그대로 보존됩니다.

예시:
  articlehtml normalize article.html
  articlehtml extract article.html --format text
  articlehtml convert article.html --to markdown
  articlehtml plugins`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "버전 정보 표시",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "articlehtml %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "설정 파일 경로 (기본: ~/.articlehtml/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLoader() (*config.Loader, error) {
	if cfgFile != "" {
		return config.NewLoaderWithPath(cfgFile), nil
	}
	return config.NewLoader()
}

// setup loads the configuration and installs the default logger.
func setup(cmd *cobra.Command, args []string) error {
	loader, err := newLoader()
	if err != nil {
		return fmt.Errorf("설정 로더 초기화 실패: %w", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}
	appConfig = loaded

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), appConfig.Log))
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	level, err := lc.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newPipeline builds a pipeline from the loaded configuration. The sanitize and minify
// flags can only turn the options on.
func newPipeline(sanitize, minify bool) (*convert.Pipeline, error) {
	chain, err := plugins.NewChain()
	if err != nil {
		return nil, fmt.Errorf("플러그인 초기화 실패: %w", err)
	}

	block := appConfig.Normalize.DefaultBlock
	if !chain.Registry().IsTextBlock(block) {
		return nil, fmt.Errorf("기본 블록은 텍스트 블록이어야 합니다: %s", block)
	}

	logger := slog.Default()
	engine := normalize.New(chain,
		normalize.WithIterationFactor(appConfig.Normalize.IterationFactor),
		normalize.WithMinIterations(appConfig.Normalize.MinIterations),
		normalize.WithDefaultBlock(block),
		normalize.WithLogger(logger),
	)

	opts := []convert.Option{convert.WithEngine(engine), convert.WithLogger(logger)}
	if sanitize || appConfig.Convert.Sanitize {
		opts = append(opts, convert.WithSanitizer(convert.ArticlePolicy()))
	}
	if minify || appConfig.Convert.Minify {
		opts = append(opts, convert.WithMinify())
	}
	return convert.New(chain, opts...), nil
}

// readInput reads a file, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("표준 입력 읽기 실패: %w", err)
		}
		return string(data), nil
	}

	// Check file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("파일을 찾을 수 없습니다: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("파일 읽기 실패: %w", err)
	}
	return string(data), nil
}

// writeOutput writes content to path, or to standard output when path is empty.
func writeOutput(cmd *cobra.Command, path, content string, quiet bool) error {
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("파일 저장 실패: %w", err)
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "저장 완료: %s\n", path)
	}
	return nil
}

// reportUnsupported prints a warning per unsupported element.
func reportUnsupported(cmd *cobra.Command, notices []convert.Notice) {
	for _, n := range notices {
		kind := "블록"
		if n.Inline {
			kind = "인라인"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "경고: 지원하지 않는 %s 요소 <%s> (경로 %s), 원본 그대로 유지됩니다\n", kind, n.Tag, n.Path)
	}
}
