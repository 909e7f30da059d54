package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Output targets of the convert command.
const (
	targetHTML     = "html"
	targetMarkdown = "markdown"
)

var (
	convertOutput   string
	convertTo       string
	convertSanitize bool
	convertMinify   bool
	convertVerbose  bool
	convertQuiet    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "아티클 HTML을 다른 형식으로 변환",
	Long: `아티클 HTML을 정규화한 뒤 지정한 형식으로 변환합니다.

지원 형식:
  html       정규화된 아티클 HTML
  markdown   CommonMark (표 포함)

환경 변수:
  ARTICLEHTML_SANITIZE=true   입력 HTML 정화 활성화
  ARTICLEHTML_MINIFY=true     출력 HTML 압축 활성화 (html 형식만)

예시:
  articlehtml convert article.html
  articlehtml convert article.html --to markdown -o article.md
  articlehtml convert article.html --to html --minify`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "출력 파일 경로 (기본: stdout)")
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", targetMarkdown, "출력 형식 (markdown, html)")
	convertCmd.Flags().BoolVar(&convertSanitize, "sanitize", false, "입력 HTML 정화")
	convertCmd.Flags().BoolVar(&convertMinify, "minify", false, "출력 HTML 압축")
	convertCmd.Flags().BoolVarP(&convertVerbose, "verbose", "v", false, "상세 출력")
	convertCmd.Flags().BoolVarP(&convertQuiet, "quiet", "q", false, "조용한 모드")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	if convertTo != targetHTML && convertTo != targetMarkdown {
		return fmt.Errorf("지원하지 않는 출력 형식: %s (지원: %s, %s)", convertTo, targetMarkdown, targetHTML)
	}

	input, err := readInput(cmd, inputPath)
	if err != nil {
		return err
	}

	// --minify only applies to html output
	p, err := newPipeline(convertSanitize, convertMinify && convertTo == targetHTML)
	if err != nil {
		return err
	}

	if !convertQuiet && convertVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "입력 파일: %s\n", inputPath)
		fmt.Fprintf(cmd.ErrOrStderr(), "출력 형식: %s\n", convertTo)
	}

	root, err := p.ToTree(input)
	if err != nil {
		return fmt.Errorf("문서 트리 생성 실패: %w", err)
	}

	var output string
	switch convertTo {
	case targetMarkdown:
		output, err = p.ToMarkdown(root)
	default:
		output, err = p.ToHTML(root)
	}
	if err != nil {
		return fmt.Errorf("변환 실패: %w", err)
	}

	return writeOutput(cmd, convertOutput, output, convertQuiet)
}
