package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roboco-io/articlehtml/internal/convert"
	"github.com/roboco-io/articlehtml/internal/editor"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
	"github.com/spf13/cobra"
)

var (
	extractOutput      string
	extractFormat      string
	extractIDs         bool
	extractSanitize    bool
	extractPrettyPrint bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "아티클 HTML에서 문서 트리 추출",
	Long: `아티클 HTML을 파싱하고 정규화하여 문서 트리를 출력합니다.

출력 형식은 JSON 또는 텍스트(트리 요약)를 지원합니다.
지원하지 않는 요소의 목록도 함께 출력됩니다.

예시:
  articlehtml extract article.html
  articlehtml extract article.html -o tree.json
  articlehtml extract article.html --format text
  articlehtml extract article.html --ids`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "출력 파일 경로 (기본: stdout)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "출력 형식 (json, text)")
	extractCmd.Flags().BoolVar(&extractIDs, "ids", false, "모든 요소에 ID 부여")
	extractCmd.Flags().BoolVar(&extractSanitize, "sanitize", false, "입력 HTML 정화")
	extractCmd.Flags().BoolVar(&extractPrettyPrint, "pretty", true, "JSON 들여쓰기 적용")

	rootCmd.AddCommand(extractCmd)
}

// extraction is the JSON output of the extract command.
type extraction struct {
	Tree        *tree.Node       `json:"tree"`
	Unsupported []convert.Notice `json:"unsupported,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	p, err := newPipeline(extractSanitize, false)
	if err != nil {
		return err
	}

	root, err := p.ToTree(input)
	if err != nil {
		return fmt.Errorf("문서 트리 생성 실패: %w", err)
	}

	if extractIDs {
		// A session assigns an id to every element of the normalized tree
		s, err := editor.NewSession(root, p.Engine())
		if err != nil {
			return fmt.Errorf("ID 부여 실패: %w", err)
		}
		root = s.Tree()
	}

	// Format output
	output, err := formatOutput(extraction{Tree: root, Unsupported: convert.Unsupported(root)}, extractFormat)
	if err != nil {
		return fmt.Errorf("출력 포맷팅 실패: %w", err)
	}

	return writeOutput(cmd, extractOutput, output, false)
}

func formatOutput(x extraction, format string) (string, error) {
	switch format {
	case "json":
		var data []byte
		var err error
		if extractPrettyPrint {
			data, err = json.MarshalIndent(x, "", "  ")
		} else {
			data, err = json.Marshal(x)
		}
		if err != nil {
			return "", err
		}
		return string(data), nil

	case "text":
		return formatAsText(x), nil

	default:
		return "", fmt.Errorf("지원하지 않는 출력 형식: %s", format)
	}
}

func formatAsText(x extraction) string {
	var sb strings.Builder

	tree.Walk(x.Tree, func(n *tree.Node, path tree.Path) bool {
		if len(path) == 0 {
			return true
		}
		sb.WriteString(strings.Repeat("  ", len(path)-1))
		if n.IsText() {
			fmt.Fprintf(&sb, "%q", n.Text)
			if marks := markNames(n.Marks); marks != "" {
				fmt.Fprintf(&sb, " [%s]", marks)
			}
		} else {
			sb.WriteString(n.Type)
			if len(n.Props) > 0 {
				fmt.Fprintf(&sb, " (%s)", formatFields(n.Props))
			}
			if len(n.Data) > 0 {
				fmt.Fprintf(&sb, " {%s}", formatFields(n.Data))
			}
		}
		sb.WriteString("\n")
		return true
	})

	if len(x.Unsupported) > 0 {
		fmt.Fprintf(&sb, "\n---\n\n지원하지 않는 요소: %d\n", len(x.Unsupported))
		for _, n := range x.Unsupported {
			fmt.Fprintf(&sb, "  <%s> %s\n", n.Tag, n.Path)
		}
	}

	return sb.String()
}

// formatFields renders a map as sorted key=value pairs. Raw HTML is elided.
func formatFields(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		if k == schema.PropMarkup {
			v = "…"
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ", ")
}

func markNames(m tree.Marks) string {
	var names []string
	for _, mark := range []struct {
		name string
		set  bool
	}{
		{"bold", m.Bold},
		{"italic", m.Italic},
		{"underline", m.Underline},
		{"code", m.Code},
		{"sup", m.Sup},
		{"sub", m.Sub},
	} {
		if mark.set {
			names = append(names, mark.name)
		}
	}
	return strings.Join(names, ",")
}
