package main

import (
	"errors"
	"os"

	"github.com/styrainc/styra-run-sdk-go/cmd/styrarun/cmd"
	"github.com/styrainc/styra-run-sdk-go/pkg/clierror"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var cliErr *clierror.CLIError
		if errors.As(err, &cliErr) {
			clierror.PrintError(cliErr, cmd.OutputFormat())
			os.Exit(cliErr.ExitCode)
		}
		os.Exit(clierror.ExitGeneral)
	}
}
