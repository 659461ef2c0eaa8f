package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagMaxArticles int
	flagRecompute   bool
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Embed articles with a missing or stale vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		opts := a.reembedOptions()
		if flagMaxArticles > 0 {
			opts.MaxArticles = flagMaxArticles
		}
		report, err := a.ingest.Reembed(cmd.Context(), opts)
		if report != nil {
			printJSON(report)
		}
		return err
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Print reader segments, from cache unless --recompute is set",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		get := a.segments.GetSegments
		if flagRecompute {
			get = a.segments.IdentifySegments
		}
		segs, err := get(cmd.Context())
		if err != nil {
			return err
		}
		printJSON(segs)
		return nil
	},
}

func init() {
	reembedCmd.Flags().IntVar(&flagMaxArticles, "max-articles", 0, "override reembed.max_articles for this run")
	segmentsCmd.Flags().BoolVar(&flagRecompute, "recompute", false, "ignore the cached segments")
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
