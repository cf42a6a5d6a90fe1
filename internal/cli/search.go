package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/navuara/flightsearch/internal/app"
	"github.com/navuara/flightsearch/internal/config"
	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/internal/normalizer"
	"github.com/navuara/flightsearch/internal/search"
)

type searchFlags struct {
	from, to  string
	date, ret string
	adults    int
	currency  string
	max       int
	maxPrice  float64
	maxStops  int
	airlines  []string
	asJSON    bool
}

func (c *CLI) searchCommand() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one flight search and print the ranked results",
		Example: `  flightctl search --from MEX --to CUN --date 2030-03-10
  flightctl search --from MEX --to CUN --date 2030-03-10 --return 2030-03-17 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.SearchRequest{
				Origin:        f.from,
				Destination:   f.to,
				DepartureDate: f.date,
				ReturnDate:    f.ret,
				Adults:        &f.adults,
				Currency:      f.currency,
				MaxResults:    &f.max,
				Airlines:      f.airlines,
			}
			if cmd.Flags().Changed("max-price") {
				req.MaxPrice = &f.maxPrice
			}
			if cmd.Flags().Changed("max-stops") {
				req.MaxStops = &f.maxStops
			}

			q, err := req.ToQuery()
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, append([]app.Option{app.WithLogOutput(c.errOut)}, c.appOpts...)...)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			resp, err := a.Orchestrator.Search(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			out := search.NewSearchResponse(q, req.Filters(), resp, time.Since(start))

			if f.asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return c.printTable(out)
		},
	}

	cmd.Flags().StringVar(&f.from, "from", "", "origin IATA code")
	cmd.Flags().StringVar(&f.to, "to", "", "destination IATA code")
	cmd.Flags().StringVar(&f.date, "date", "", "departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.ret, "return", "", "return date (YYYY-MM-DD) for a round trip")
	cmd.Flags().IntVar(&f.adults, "adults", 1, "number of adult passengers")
	cmd.Flags().StringVar(&f.currency, "currency", models.DefaultCurrency, "ISO currency code")
	cmd.Flags().IntVar(&f.max, "max", models.DefaultMaxResults, "maximum number of results")
	cmd.Flags().Float64Var(&f.maxPrice, "max-price", 0, "only show options at or below this total")
	cmd.Flags().IntVar(&f.maxStops, "max-stops", 0, "only show options with at most this many connections")
	cmd.Flags().StringSliceVar(&f.airlines, "airline", nil, "only show options on these carriers (repeatable)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the full response as JSON")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func (c *CLI) printTable(resp models.SearchResponse) error {
	fmt.Fprintf(c.out, "%s (%s)\n", resp.Metadata.StrategyNote, resp.Metadata.StrategyUsed)
	if r := resp.Resolved; r != nil {
		route := r.Origin + "-" + r.Destination + " " + r.DepartureDate
		if r.ReturnDate != "" {
			route += " / " + r.ReturnDate
		}
		fmt.Fprintf(c.out, "Searched: %s\n", route)
	}
	if len(resp.Results) == 0 {
		return nil
	}
	fmt.Fprintln(c.out)

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPRICE\tCARRIER\tROUTE\tDEPART\tSTOPS\tDURATION")
	for i, o := range resp.Results {
		out := o.Outbound
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			i+1,
			o.PriceFormatted,
			o.PrimaryCarrierName,
			strings.Join(stopsOf(out), "-"),
			out.Legs[0].DepartAt.Format("2006-01-02 15:04"),
			out.Stops,
			humanDuration(out.DurationMinutes),
		)
	}
	return w.Flush()
}

func stopsOf(it models.Itinerary) []string {
	codes := make([]string, 0, len(it.Legs)+1)
	for i, l := range it.Legs {
		if i == 0 {
			codes = append(codes, l.From)
		}
		codes = append(codes, l.To)
	}
	return codes
}

func humanDuration(minutes int) string {
	iso := normalizer.FormatISODuration(minutes)
	return strings.ToLower(strings.TrimPrefix(iso, "PT"))
}
