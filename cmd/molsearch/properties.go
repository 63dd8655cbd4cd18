// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/molsearch/internal/catalog"
)

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "List the property names accepted by --prop",
	Long: `Properties lists the computed descriptors and ADMET predictions that can
be used as property ranges, with the aliases each one accepts. The list
comes from the built-in catalog or --properties-file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatProperties(cmd.OutOrStdout(), env.catalog.Properties(), jsonOutput)
	},
}

func init() {
	propertiesCmd.Flags().Bool("json", false, "output the catalog as JSON")
	rootCmd.AddCommand(propertiesCmd)
}

type propertyJSON struct {
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Aliases []string `json:"aliases,omitempty"`
}

func formatProperties(w io.Writer, props []catalog.Property, jsonOutput bool) error {
	if jsonOutput {
		out := make([]propertyJSON, len(props))
		for i, p := range props {
			out[i] = propertyJSON{Name: p.Name, Group: string(p.Group), Aliases: p.Aliases}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "%-40s  %-10s  %s\n", "Name", "Group", "Aliases")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, p := range props {
		fmt.Fprintf(w, "%-40s  %-10s  %s\n", p.Name, p.Group, strings.Join(p.Aliases, ", "))
	}
	fmt.Fprintf(w, "\n%d properties\n", len(props))
	return nil
}
