// cmd/simulate/commands.go

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	terms         []string
	geoCode       string
	geoName       string
	trendsStart   string
	trendsEnd     string
	timelineStart string
	timelineEnd   string
	maxDepth      int
	outDir        string
	outFormat     string
	withSearch    bool
	verbose       bool

	rootCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Explore related search terms and their relative volume for a geographic area",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger(verbose)
		},
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Expand one or more seed terms and export the keyword tree and relative volumes",
		RunE:  runSimulation, // Defined in run.go
	}

	classifyCmd = &cobra.Command{
		Use:   "classify [geo code...]",
		Short: "Print the level and query restrictions of geo codes",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify, // Defined in run.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	runCmd.Flags().StringSliceVarP(&terms, "term", "t", nil, "seed search term (repeatable)")
	runCmd.Flags().StringVarP(&geoCode, "geo", "g", "US", "geo code, e.g. US, US-MA or US-MA-506")
	runCmd.Flags().StringVar(&geoName, "description", "", "human readable name of the geo area")
	runCmd.Flags().StringVar(&trendsStart, "trends-start", "", "start month of the related queries window (YYYY-MM)")
	runCmd.Flags().StringVar(&trendsEnd, "trends-end", "", "end month of the related queries window (YYYY-MM)")
	runCmd.Flags().StringVar(&timelineStart, "timeline-start", "", "start date of the volume window (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&timelineEnd, "timeline-end", "", "end date of the volume window (YYYY-MM-DD)")
	runCmd.Flags().IntVarP(&maxDepth, "depth", "d", 0, "number of expansion levels (defaults to SIMULATION_MAX_DEPTH)")
	runCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (defaults to OUTPUT_DIR)")
	runCmd.Flags().StringVarP(&outFormat, "format", "f", "", "output format, csv or xlsx (defaults to OUTPUT_FORMAT)")
	runCmd.Flags().BoolVar(&withSearch, "search", false, "also build the site probability report from custom search results")
	runCmd.MarkFlagRequired("term")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
}
