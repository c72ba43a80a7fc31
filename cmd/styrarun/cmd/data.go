package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/styrainc/styra-run-sdk-go/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataGetCmd)
	dataCmd.AddCommand(dataPutCmd)
	dataCmd.AddCommand(dataDeleteCmd)
}

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Read and write environment data",
}

var dataGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Read the document at a data path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var doc any
		if err := client.GetData(cmd.Context(), args[0], &doc); err != nil {
			return clierror.FromSDK(err)
		}

		if outputFormat == "yaml" {
			return formatOutput(os.Stdout, doc)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	},
}

var dataPutCmd = &cobra.Command{
	Use:   "put <path> <json>",
	Short: "Replace the document at a data path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var doc any
		if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
			return clierror.InvalidConfig(fmt.Sprintf("document is not valid JSON: %v", err))
		}
		if err := client.PutData(cmd.Context(), args[0], doc); err != nil {
			return clierror.FromSDK(err)
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	},
}

var dataDeleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete the document at a data path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteData(cmd.Context(), args[0]); err != nil {
			return clierror.FromSDK(err)
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}
