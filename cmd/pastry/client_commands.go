package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hzrd149/process-pastry/pkg/client"
	"github.com/spf13/cobra"
)

const apiDefaultTimeout = 30 * time.Second

// APIFlags holds the connection flags shared by all client commands.
type APIFlags struct {
	URL      string
	Timeout  time.Duration
	Username string
	Password string
	Insecure bool
}

func (f *APIFlags) newClient() *client.Client {
	return client.New(client.Config{
		BaseURL:  f.URL,
		Timeout:  f.Timeout,
		Username: f.Username,
		Password: f.Password,
		Insecure: f.Insecure,
	})
}

func newStatusCmd(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the managed process status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := api.newClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}
}

func newSchemaCmd(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show variable metadata derived from the example file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := api.newClient().Schema(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(s)
			return nil
		},
	}
}

func newEnvCmd(api *APIFlags) *cobra.Command {
	env := &cobra.Command{
		Use:   "env",
		Short: "Read and edit the managed process's env file",
	}
	env.AddCommand(newEnvGetCmd(api))
	env.AddCommand(newEnvSetCmd(api))
	env.AddCommand(newEnvReplaceCmd(api))
	return env
}

func newEnvGetCmd(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current env file contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := api.newClient().GetEnv(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(m)
			return nil
		},
	}
}

func newEnvSetCmd(api *APIFlags) *cobra.Command {
	var noRestart bool
	cmd := &cobra.Command{
		Use:   "set KEY=VALUE [KEY=VALUE...]",
		Short: "Patch variables into the env file and restart the process",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parsePairs(args)
			if err != nil {
				return err
			}
			res, err := api.newClient().PatchEnv(cmd.Context(), patch, !noRestart)
			if err != nil {
				return err
			}
			printJSON(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "write the file without restarting the process")
	return cmd
}

func newEnvReplaceCmd(api *APIFlags) *cobra.Command {
	var filePath string
	var noRestart bool
	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace the whole env file from a JSON file and restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read %s: %w", filePath, err)
			}
			var m map[string]string
			if err := json.Unmarshal(b, &m); err != nil {
				return fmt.Errorf("parse %s: %w", filePath, err)
			}
			res, err := api.newClient().ReplaceEnv(cmd.Context(), m, !noRestart)
			if err != nil {
				return err
			}
			printJSON(res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "JSON file with the full variable map")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "write the file without restarting the process")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parsePairs(args []string) (map[string]string, error) {
	m := make(map[string]string, len(args))
	for _, a := range args {
		i := strings.IndexByte(a, '=')
		if i <= 0 {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", a)
		}
		m[a[:i]] = a[i+1:]
	}
	return m, nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(b))
}
