package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/navuara/flightsearch/internal/app"
	"github.com/navuara/flightsearch/internal/config"
)

func (c *CLI) alternatesCommand() *cobra.Command {
	var includeCountry bool

	cmd := &cobra.Command{
		Use:   "alternates IATA",
		Short: "List the airports tried in place of IATA, in probe order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cfg.Alternates.IncludeCountry = cfg.Alternates.IncludeCountry || includeCountry
			dir, err := app.LoadAirports(cfg.Alternates)
			if err != nil {
				return err
			}

			code := strings.ToUpper(strings.TrimSpace(args[0]))
			for _, iata := range dir.Alternates(code) {
				if a, ok := dir.Lookup(iata); ok {
					fmt.Fprintf(c.out, "%s\t%s, %s\n", a.IATA, a.City, a.Country)
				} else {
					fmt.Fprintln(c.out, iata)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeCountry, "country", false, "also list same-country airports")
	return cmd
}
