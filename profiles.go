package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/passport-photo/internal/config"
	"github.com/example/passport-photo/internal/transform"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the compiled transformation profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		active := transform.DefaultProfile
		if cfg, err := config.Load(); err == nil && cfg.Profile != "" {
			active = cfg.Profile
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACTIVE\tPROFILE\tTRANSFORMATION")
		for _, name := range transform.Names() {
			p, err := transform.Lookup(name)
			if err != nil {
				return err
			}
			mark := ""
			if name == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", mark, p.ID(), p.Transformation())
		}
		return w.Flush()
	},
}
