// File: cmd/models.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/deeplinks"
	"github.com/xkilldash9x/campaign-probe/internal/market"
	"github.com/xkilldash9x/campaign-probe/internal/observability"
	"github.com/xkilldash9x/campaign-probe/internal/runner"
)

func newModelsCmd() *cobra.Command {
	var withURLs bool

	modelsCmd := &cobra.Command{
		Use:   "models MARKET/lang",
		Short: "Lists the model series the deeplinks API knows for a market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			client := deeplinks.NewClient(cfg.Deeplinks(), observability.GetLogger())
			return listModels(cmd.Context(), cmd.OutOrStdout(), client, args[0], withURLs)
		},
	}

	modelsCmd.Flags().BoolVar(&withURLs, "urls", false, "Also resolve and print each model's links.")
	return modelsCmd
}

var urlKinds = []schemas.URLKind{
	schemas.URLHomePage, schemas.URLProductPage, schemas.URLConfigurator, schemas.URLOnlineShop, schemas.URLTestDrive,
}

func listModels(ctx context.Context, out io.Writer, resolver runner.URLResolver, code string, withURLs bool) error {
	loc, err := market.ParseLocale(code)
	if err != nil {
		return err
	}
	series, err := resolver.ModelSeries(ctx, loc)
	if err != nil {
		return fmt.Errorf("failed to list model series for %s: %w", loc, err)
	}

	for _, model := range series {
		if !withURLs {
			fmt.Fprintln(out, model)
			continue
		}
		urls, err := resolver.VehicleURLs(ctx, loc, model)
		if err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", model, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s %s\n", model, urls.ModelName, urls.BodyType)
		for _, kind := range urlKinds {
			if u := urls.Get(kind); u != "" {
				fmt.Fprintf(out, "  %-13s %s\n", kind, u)
			}
		}
	}
	return nil
}
