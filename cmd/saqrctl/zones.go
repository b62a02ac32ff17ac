package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/saqr/internal/domain/zones"
)

var zonesSpecs []string

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Show which facility zone each spec is assigned to",
	Long: `Show which facility zone each spec is assigned to.

Without --spec the zone catalog is listed.

Examples:
  saqrctl zones
  saqrctl zones --spec "KT-01=Exhaust hood is clean" --spec "FL-05=Extinguisher tagged"`,
	RunE: runZones,
}

func init() {
	zonesCmd.Flags().StringArrayVarP(&zonesSpecs, "spec", "s", nil, "checklist spec as CODE=requirement (repeatable)")
}

func runZones(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(zonesSpecs) == 0 {
		fmt.Fprintln(w, "ZONE\tNAME\tNAME (AR)")
		for _, z := range zones.Catalog {
			fmt.Fprintf(w, "%s\t%s\t%s\n", z.ID, z.Name, z.NameAr)
		}
		g := zones.Lookup(zones.General)
		fmt.Fprintf(w, "%s\t%s\t%s\n", g.ID, g.Name, g.NameAr)
		return nil
	}

	specs, err := parseSpecs(zonesSpecs)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "CODE\tZONE\tNAME")
	for _, sz := range zones.Assign(specs).List() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sz.SpecCode, sz.ZoneID, sz.ZoneName)
	}
	return nil
}
