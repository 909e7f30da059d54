package cli

import (
	"fmt"

	"github.com/roboco-io/articlehtml/internal/convert"
	"github.com/spf13/cobra"
)

var (
	normalizeOutput   string
	normalizeSanitize bool
	normalizeMinify   bool
	normalizeVerbose  bool
	normalizeQuiet    bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>",
	Short: "아티클 HTML을 정규화",
	Long: `아티클 HTML을 문서 트리로 읽어 정규화한 뒤 다시 HTML로 출력합니다.

정규화된 결과를 다시 정규화해도 바뀌지 않습니다.
파일 대신 - 를 지정하면 표준 입력에서 읽습니다.

환경 변수:
  ARTICLEHTML_SANITIZE=true   입력 HTML 정화 활성화
  ARTICLEHTML_MINIFY=true     출력 HTML 압축 활성화

예시:
  articlehtml normalize article.html
  articlehtml normalize article.html -o clean.html
  cat article.html | articlehtml normalize - --sanitize --minify`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeOutput, "output", "o", "", "출력 파일 경로 (기본: stdout)")
	normalizeCmd.Flags().BoolVar(&normalizeSanitize, "sanitize", false, "입력 HTML 정화 (스크립트, 이벤트 속성 제거)")
	normalizeCmd.Flags().BoolVar(&normalizeMinify, "minify", false, "출력 HTML 압축")
	normalizeCmd.Flags().BoolVarP(&normalizeVerbose, "verbose", "v", false, "상세 출력")
	normalizeCmd.Flags().BoolVarP(&normalizeQuiet, "quiet", "q", false, "조용한 모드")

	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	input, err := readInput(cmd, inputPath)
	if err != nil {
		return err
	}

	p, err := newPipeline(normalizeSanitize, normalizeMinify)
	if err != nil {
		return err
	}

	root, err := p.Deserialize(input)
	if err != nil {
		return fmt.Errorf("HTML 파싱 실패: %w", err)
	}

	res, err := p.Engine().Normalize(root)
	if err != nil {
		return fmt.Errorf("정규화 실패: %w", err)
	}

	if !normalizeQuiet && normalizeVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "입력 파일: %s\n", inputPath)
		fmt.Fprintf(cmd.ErrOrStderr(), "정규화 완료: %d 패스, %d 변환\n", res.Passes, res.Transforms)
	}
	if !normalizeQuiet {
		reportUnsupported(cmd, convert.Unsupported(root))
	}

	out, err := p.ToHTML(root)
	if err != nil {
		return fmt.Errorf("HTML 직렬화 실패: %w", err)
	}

	return writeOutput(cmd, normalizeOutput, out, normalizeQuiet)
}
