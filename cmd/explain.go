package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stevehiehn/greenscreen/internal/engine"
)

var explainFlags submissionFlags

var explainCmd = &cobra.Command{
	Use:   "explain <screen.yaml|screen-name>",
	Short: "Show the keystrokes a submission would send, without connecting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScreen(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sub, err := explainFlags.submission(sc)
		if err != nil {
			return err
		}
		result, err := engine.Execute(sc, sub, engine.NewRunContext(nil, "", logger), engine.ModeExplain)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(result)
		}
		printResult(result)
		return nil
	},
}

func init() {
	addSubmissionFlags(explainCmd, &explainFlags)
	rootCmd.AddCommand(explainCmd)
}
