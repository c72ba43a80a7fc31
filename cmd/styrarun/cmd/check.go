package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/styrainc/styra-run-sdk-go/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <path> [input-json]",
	Short: "Query a policy decision",
	Long: `Query the policy decision at the given path.

The optional second argument is the decision input as JSON:

  styrarun check tickets/create '{"subject": "alice", "tenant": "acmecorp"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCheck,
}

// checkResult is the check output for JSON/YAML rendering.
type checkResult struct {
	Path    string `json:"path" yaml:"path"`
	Allowed bool   `json:"allowed" yaml:"allowed"`
	Result  any    `json:"result,omitempty" yaml:"result,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	path := args[0]
	var input any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
			return clierror.InvalidConfig(fmt.Sprintf("input is not valid JSON: %v", err))
		}
	}

	decision, err := client.Check(cmd.Context(), path, input)
	if err != nil {
		return clierror.FromSDK(err)
	}

	out := checkResult{Path: path, Allowed: decision.Allowed()}
	if decision.Result != nil {
		var result any
		if err := json.Unmarshal(decision.Result, &result); err == nil {
			out.Result = result
		}
	}

	if outputFormat != "table" {
		return formatOutput(os.Stdout, out)
	}
	if out.Allowed {
		color.Green("ALLOWED  %s", path)
	} else {
		color.Red("DENIED   %s", path)
	}
	if out.Result != nil {
		fmt.Printf("Result: %v\n", out.Result)
	}
	return nil
}
