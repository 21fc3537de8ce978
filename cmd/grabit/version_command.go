package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"grabit/internal/api"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the grabit version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "grabit %s (%s/%s)\n", api.Version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
