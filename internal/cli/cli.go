// Package cli implements flightctl, a command-line front end to the same
// search pipeline the HTTP server runs.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/navuara/flightsearch/internal/app"
)

// CLI carries the output streams and any app overrides shared by commands.
type CLI struct {
	out     io.Writer
	errOut  io.Writer
	appOpts []app.Option
}

// New returns a CLI writing results to out and logs to errOut. opts are
// passed through to app.New for every command that runs a search.
func New(out, errOut io.Writer, opts ...app.Option) *CLI {
	return &CLI{out: out, errOut: errOut, appOpts: opts}
}

func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "flightctl",
		Short:        "Search flights with automatic fallback to connections, nearby airports and dates",
		SilenceUsage: true,
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.alternatesCommand())

	return root
}
