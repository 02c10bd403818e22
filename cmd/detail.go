package cmd

import (
	"fmt"

	"github.com/theirongolddev/salesdash/internal/cli"

	"github.com/spf13/cobra"
)

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Daily table of actual and predicted values",
	RunE:  runDetail,
}

func init() {
	rootCmd.AddCommand(detailCmd)
}

func runDetail(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	view, err := rt.refresh(cmd.Context())
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(view.Merged)
	}

	printHeader(fmt.Sprintf("DAILY DETAIL  %d days", len(view.Sales)), view)
	if len(view.Merged) == 0 {
		fmt.Println("  No data.")
		return nil
	}

	rows := make([][]string, 0, len(view.Merged))
	for _, p := range view.Merged {
		actual, predicted := "—", "—"
		if p.HasActual() {
			actual = cli.FormatValue(*p.Actual, 0)
		}
		if p.HasPredicted() {
			predicted = cli.FormatValue(*p.Predicted, 1)
		}
		rows = append(rows, []string{p.Date, cli.FormatWeekday(p.Date), actual, predicted})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Day", "Actual", "Predicted"},
		Rows:    rows,
	}))
	fmt.Println()
	printForecastStatus(view)
	return nil
}
