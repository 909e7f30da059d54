package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/plugins"
	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "등록된 플러그인 목록",
	Long: `변환과 정규화에 사용되는 플러그인을 디스패치 순서대로 표시합니다.

먼저 등록된 플러그인이 우선합니다. 노드 타입이 없는 플러그인은
HTML 변환에만 참여합니다 (예: marks, div).`,
	RunE: runPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}

func runPlugins(cmd *cobra.Command, args []string) error {
	chain, err := plugins.NewChain()
	if err != nil {
		return fmt.Errorf("플러그인 초기화 실패: %w", err)
	}
	writePluginTable(cmd.OutOrStdout(), chain)
	return nil
}

func writePluginTable(out io.Writer, chain *plugin.Chain) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "순서\t플러그인\t노드 타입\t분류\t허용 자식")
	fmt.Fprintln(w, "----\t-------\t--------\t----\t--------")

	reg := chain.Registry()
	for i, p := range chain.Plugins() {
		types := p.Types()
		if len(types) == 0 {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\n", i+1, p.Name())
			continue
		}
		for _, nt := range types {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				i+1, p.Name(), nt.Name, reg.Class(nt.Name), describeChildren(chain.Rules(nt.Name).Children))
		}
	}
}

func describeChildren(c *plugin.Constraint) string {
	if c == nil {
		return "(기본)"
	}
	if len(c.Allowed) == 0 {
		return "(없음)"
	}
	return strings.Join(c.Allowed, ", ")
}
