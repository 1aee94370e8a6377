package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/traverse"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of traverse",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("traverse version %s\n", strings.TrimSpace(traverse.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
