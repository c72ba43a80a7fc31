// Package cli provides shared test utilities for styrarun command testing.
//
// Run executes a cobra command and captures its output. Because table
// rendering and colorized output write to the process streams directly, Run
// redirects os.Stdout and os.Stderr for the duration of the command; tests
// using it must not run in parallel.
//
//	result := cli.Run(t, rootCmd, "check", "app/allow", "-o", "json")
//	result.AssertSuccess(t)
//	result.AssertContains(t, `"allowed"`)
//
// WriteConfig produces a config file for the --config flag:
//
//	path := cli.WriteConfig(t, "url: "+server.URL()+"\ntoken: secret\n")
//	cli.Run(t, rootCmd, "gateways", "--config", path)
package cli
