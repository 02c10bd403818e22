package cmd

import (
	"fmt"

	"github.com/theirongolddev/salesdash/internal/cli"

	"github.com/spf13/cobra"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Upcoming predicted values",
	RunE:  runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.predictor == nil {
		return fmt.Errorf("forecasting is disabled (set forecast.url in %s or pass --forecast-url)", configPath())
	}

	view, err := rt.refresh(cmd.Context())
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(view.Upcoming)
	}

	printHeader("UPCOMING PREDICTIONS", view)
	fmt.Println(cli.RenderPills(view.Upcoming, view.Forecast.Loading()))
	fmt.Println()
	if view.Forecast.Failed() {
		fmt.Println(cli.RenderWarning(view.Forecast.Message))
		fmt.Println()
	}
	return nil
}
