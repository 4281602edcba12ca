package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-audit/internal/scorer"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket <score>",
	Short: "Print the bucket for a 0-100 score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "bucket: parse score %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), scorer.ScoreBucket(score))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)
}
