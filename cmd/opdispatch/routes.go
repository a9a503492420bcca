package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/dshills/opdispatch/internal/app"
)

var routesJSON bool

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the handlers in the handler tree",
	Long: `Build the registry from the handler tree and list every binding:
operation IDs first, then tag-tree methods and wildcards by namespace.`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "Print as JSON")
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := app.BuildRegistry(cfg, app.Options{})
	if err != nil {
		return err
	}
	routes := reg.Routes()

	out := cmd.OutOrStdout()
	if routesJSON {
		data, err := json.Marshal(routes)
		if err != nil {
			return err
		}
		_, err = out.Write(pretty.Pretty(data))
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAMESPACE\tKEY\tSOURCE")
	for _, r := range routes {
		key := r.Key
		if key == "" {
			key = "*"
		}
		ns := r.Namespace
		if ns == "" {
			ns = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, ns, key, r.Source)
	}
	return tw.Flush()
}
