package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/theirongolddev/salesdash/internal/cli"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/pipeline"

	"github.com/spf13/cobra"
)

var flagJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "KPI summary with forecast status",
	RunE:  runSummary,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print the dashboard view as JSON")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
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
		return printJSON(view)
	}

	printHeader("SALES SUMMARY", view)
	if len(view.Sales) == 0 {
		fmt.Println("  No sales records found.")
		fmt.Println()
		return nil
	}

	k := view.KPIs
	rows := [][]string{
		{"Total Sales", cli.FormatValue(k.Total, 0)},
		{"Average", cli.FormatValue(k.Average, 1)},
		{"Peak Day", cli.FormatValue(k.Max, 0)},
		{"Lowest Day", cli.FormatValue(k.Min, 0)},
		{"Trend", cli.RenderTrend(k.Trend)},
		{"---"},
		{"Days", cli.FormatNumber(int64(len(view.Sales)))},
		{"Range", view.Sales[0].Date + " → " + view.Sales[len(view.Sales)-1].Date},
		{"Mini Trend", cli.RenderSparkline(model.SalesValues(view.Sales))},
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))
	fmt.Println()
	printForecastStatus(view)
	return nil
}

// printHeader prints the title and any series warnings.
func printHeader(title string, view pipeline.View) {
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()
	if view.StaleNote != "" {
		fmt.Println(cli.RenderWarning(view.StaleNote))
		fmt.Println()
	}
	if view.MergeError != "" {
		fmt.Println(cli.RenderWarning(view.MergeError))
		fmt.Println()
	}
}

func printForecastStatus(view pipeline.View) {
	fmt.Println(cli.RenderStatus("Forecast", view.Forecast))
	if view.Forecast.State == model.StateSucceeded {
		fmt.Printf("  %d upcoming days\n", len(view.Upcoming))
	}
	fmt.Println()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
