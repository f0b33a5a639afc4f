package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/greenscreen/internal/engine"
	"github.com/stevehiehn/greenscreen/internal/session"
)

var (
	runFlags     submissionFlags
	runArtifacts string
	runRecord    bool
)

var runCmd = &cobra.Command{
	Use:   "run <screen.yaml|screen-name>",
	Short: "Navigate to a screen on the host, fill it and classify the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sc, err := loadScreen(ctx, args[0])
		if err != nil {
			return err
		}
		sub, err := runFlags.submission(sc)
		if err != nil {
			return err
		}

		workDir := runArtifacts
		if workDir == "" {
			workDir = cfg.ArtifactsDir
		}
		if workDir == "" {
			workDir, _ = os.Getwd()
		}
		rc := engine.NewRunContext(nil, workDir, logger)

		// Check the data before connecting.
		result, err := engine.Execute(sc, sub, rc, engine.ModeExplain)
		if err != nil {
			return err
		}
		if result.Success {
			open := func(ctx context.Context) (session.Session, error) {
				return session.Open(ctx, cfg.Session, logger)
			}
			err = session.With(ctx, open, func(term session.Terminal) error {
				rc.Terminal = term
				var runErr error
				result, runErr = engine.Execute(sc, sub, rc, engine.ModeRun)
				return runErr
			}, logger)
			if err != nil {
				return err
			}
		}

		if runRecord {
			if err := record(ctx, sc.Name, sub, result); err != nil {
				return err
			}
		}

		if jsonOutput {
			if err := printJSON(result); err != nil {
				return err
			}
		} else {
			printResult(result)
			if result.Success {
				fmt.Printf("Screen %q completed successfully.\n", sc.Name)
			} else if result.FailedStep != 0 {
				fmt.Printf("Screen %q failed at step %d.\n", sc.Name, result.FailedStep)
			}
		}
		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

// record stores the submission and its result in the catalog history.
func record(ctx context.Context, screenName string, sub engine.Submission, result *engine.Result) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	inputs := map[string]string{}
	for k, v := range parseInputs(runFlags.params) {
		inputs[k] = v
	}
	id, err := st.SaveSubmission(ctx, 0, screenName, inputs, sub.Values)
	if err != nil {
		return err
	}
	return st.FinishSubmission(ctx, id, result.RunID, result.Success, string(result.Outcome), result.Message)
}

func init() {
	addSubmissionFlags(runCmd, &runFlags)
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "", "Directory for screen snapshots (default: config artifacts_dir or the working directory)")
	runCmd.Flags().BoolVar(&runRecord, "record", false, "Record the submission in the catalog history")
	rootCmd.AddCommand(runCmd)
}
