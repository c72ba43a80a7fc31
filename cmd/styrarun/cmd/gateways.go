package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/styrainc/styra-run-sdk-go/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(gatewaysCmd)
}

var gatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "Show the resolved gateway list",
	Long: `Discover and print the environment's gateways in failover order.

The order reflects the configured organize strategy; the first entry is
the gateway requests are sent to first.`,
	Args: cobra.NoArgs,
	RunE: runGateways,
}

// gatewayInfo is the per-gateway output row.
type gatewayInfo struct {
	URL    string `json:"url" yaml:"url"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
	ZoneID string `json:"zone_id,omitempty" yaml:"zone_id,omitempty"`
}

func runGateways(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	gateways, err := client.Gateways(cmd.Context())
	if err != nil {
		return clierror.FromSDK(err)
	}

	rows := make([]gatewayInfo, len(gateways))
	for i, gw := range gateways {
		rows[i] = gatewayInfo{
			URL:    gw.String(),
			Region: gw.Locality.Region,
			ZoneID: gw.Locality.ZoneID,
		}
	}

	if outputFormat != "table" {
		return formatOutput(os.Stdout, rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tURL\tREGION\tZONE")
	for i, row := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, row.URL, row.Region, row.ZoneID)
	}
	return w.Flush()
}
