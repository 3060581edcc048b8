package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/perimeter-cli/internal/model"
)

var checkaddrCmd = &cobra.Command{
	Use:   "checkaddr <input.json> <address>",
	Short: "Check whether an address belongs to the described community",
	Long:  "Locates the address (property parcel centroid when possible, geocoder otherwise) and tests it against both the boundary-lines polygon and the zoning union. Verdicts: INSIDE, OUTSIDE, BOUNDARY_DISCREPANCY, INCONCLUSIVE.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := model.LoadCommunityInput(args[0])
		if err != nil {
			return err
		}

		check, err := newPipeline().CheckAddress(cmd.Context(), in, args[1])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(check, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() { rootCmd.AddCommand(checkaddrCmd) }
