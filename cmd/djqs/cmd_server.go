package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datajunction/djqs/app/routes"
	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/internal/kernel"
	"github.com/datajunction/djqs/internal/server"
)

var portFlag string

// djqs serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if portFlag != "" {
			config.Set("APP_PORT", portFlag)
		}
		return server.Serve()
	},
}

// djqs route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRoutes(cmd.OutOrStdout(), kernel.New(routes.Deps{}))
	},
}

func printRoutes(out io.Writer, k *kernel.HTTPKernel) error {
	infos := k.Routes()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No named routes registered.")
		return nil
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Path != infos[j].Path {
			return infos[i].Path < infos[j].Path
		}
		return infos[i].Method < infos[j].Method
	})

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tNAME")
	fmt.Fprintln(w, "------\t----\t----")
	for _, ri := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
	}
	return w.Flush()
}

func init() {
	serveCmd.Flags().StringVarP(&portFlag, "port", "p", "", "HTTP port (overrides APP_PORT)")
}
