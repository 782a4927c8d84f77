package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "pastry",
		Short: "Edit a process's env file over HTTP and restart it with the result",
		Long: "pastry supervises a single long-lived command, exposes its env file\n" +
			"through an HTTP API, and restarts the command whenever the operator\n" +
			"changes the configuration.",
		SilenceUsage: true,
	}

	var api APIFlags
	root.PersistentFlags().StringVar(&api.URL, "api-url", "http://localhost:8080/api", "daemon API base URL")
	root.PersistentFlags().DurationVar(&api.Timeout, "timeout", apiDefaultTimeout, "API request timeout")
	root.PersistentFlags().StringVar(&api.Username, "user", "", "basic auth username")
	root.PersistentFlags().StringVar(&api.Password, "password", "", "basic auth password")
	root.PersistentFlags().BoolVar(&api.Insecure, "insecure", false, "skip TLS certificate verification")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd(&api))
	root.AddCommand(newEnvCmd(&api))
	root.AddCommand(newSchemaCmd(&api))
	return root
}
