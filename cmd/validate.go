package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/greenscreen/internal/engine"
	"github.com/stevehiehn/greenscreen/internal/screen"
)

var validateFlags submissionFlags

var validateCmd = &cobra.Command{
	Use:   "validate <screen.yaml|screen-name>",
	Short: "Validate a screen definition and, with --data, a submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScreen(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := screen.Validate(sc); err != nil {
			if jsonOutput {
				json.NewEncoder(os.Stdout).Encode(map[string]any{"valid": false, "error": err.Error()})
			} else {
				fmt.Fprintf(os.Stderr, "Validation failed: %s\n", err)
			}
			os.Exit(1)
		}
		warnings := screen.Warnings(sc)

		if len(validateFlags.data) == 0 && validateFlags.dataFile == "" {
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"valid": true, "warnings": warnings})
			}
			fmt.Printf("Screen %q is valid.\n", sc.Name)
			for _, w := range warnings {
				fmt.Printf("  Warning: %s\n", w)
			}
			return nil
		}

		sub, err := validateFlags.submission(sc)
		if err != nil {
			return err
		}
		result, err := engine.Execute(sc, sub, engine.NewRunContext(nil, "", logger), engine.ModeExplain)
		if err != nil {
			return err
		}
		if jsonOutput {
			json.NewEncoder(os.Stdout).Encode(map[string]any{
				"valid":    result.Success,
				"messages": result.Messages,
				"errors":   result.Errors,
				"warnings": warnings,
			})
		} else {
			for _, m := range result.Messages {
				fmt.Println(m)
			}
			for _, w := range warnings {
				fmt.Printf("  Warning: %s\n", w)
			}
			if result.Success {
				fmt.Println("Submission is valid.")
			}
		}
		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	addSubmissionFlags(validateCmd, &validateFlags)
	rootCmd.AddCommand(validateCmd)
}

func addSubmissionFlags(cmd *cobra.Command, f *submissionFlags) {
	cmd.Flags().StringArrayVar(&f.data, "data", nil, "Field values (field=value)")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "Runtime parameters (name=value), e.g. company_id=694")
	cmd.Flags().StringVar(&f.dataFile, "data-file", "", "YAML or JSON file of field values")
}
