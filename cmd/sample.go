package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/mc-extractor/internal/worklist"
)

var sampleCmd = &cobra.Command{
	Use:   "sample [path]",
	Short: "Write a sample MC number list for --list",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := "sample_mc_numbers.txt"
		if len(args) == 1 {
			path = args[0]
		}
		if err := worklist.WriteSample(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Wrote %d MC numbers to %s\n", len(worklist.SampleNumbers), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}
