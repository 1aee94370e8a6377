package main

import (
	"fmt"
	"os"

	"github.com/aretw0/traverse/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Play a scripted navigation scenario",
	Long:  `Loads a YAML scenario of pages and steps and plays it against a fresh (or restored) navigation history, rendering each page as its transition finishes.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scenarioPath, _ := cmd.Flags().GetString("scenario")
		if !cmd.Flags().Changed("scenario") && len(args) > 0 {
			scenarioPath = args[0]
		}
		plain, _ := cmd.Flags().GetBool("plain")
		debug, _ := cmd.Flags().GetBool("debug")
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		redisURL, _ := cmd.Flags().GetString("redis")
		fresh, _ := cmd.Flags().GetBool("fresh")
		maxEntries, _ := cmd.Flags().GetInt("max-entries")

		opts := cli.RunOptions{
			ScenarioPath: scenarioPath,
			Plain:        plain,
			Debug:        debug,
			SnapshotID:   snapshotID,
			RedisURL:     redisURL,
			Fresh:        fresh,
			MaxEntries:   maxEntries,
		}
		if err := cli.Execute(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("scenario", "scenario.yaml", "Path to the scenario file")
	runCmd.Flags().Bool("plain", false, "Disable markdown styling and colors")
	runCmd.Flags().String("snapshot", "", "Snapshot ID to restore from and save to")
	runCmd.Flags().Bool("fresh", false, "Discard any stored snapshot before running")
	runCmd.Flags().Int("max-entries", 0, "Bound the history length (0 = unbounded)")
}
