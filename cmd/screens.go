package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/store"
)

var screensCmd = &cobra.Command{
	Use:   "screens",
	Short: "Manage the screen catalog database",
}

var screensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog screens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		names, err := st.ListScreenNames(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"screens": names})
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var screensShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a catalog screen as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		sc, err := st.GetScreen(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sc)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(sc)
	},
}

var (
	importReplace    bool
	importName       string
	importFields     string
	importNavigation string
	importData       string
)

var screensImportCmd = &cobra.Command{
	Use:   "import [screen.yaml...]",
	Short: "Import screens from YAML files, or one screen from CSV files",
	Long: `Import screens into the catalog database.

YAML: greenscreen screens import screens/*.yaml
CSV:  greenscreen screens import --name company_maintenance --fields fields.csv --navigation navigation.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var screens []*screen.Screen
		if importFields != "" || importNavigation != "" {
			if len(args) > 0 || importName == "" || importFields == "" || importNavigation == "" {
				return errors.New("CSV import takes --name, --fields and --navigation and no file arguments")
			}
			sc, values, err := screen.LoadCSV(importName, screen.CSVFiles{
				Fields:     importFields,
				Navigation: importNavigation,
				Data:       importData,
			})
			if err != nil {
				return err
			}
			if len(values) > 0 {
				logger.Info("ignoring sample data rows; pass them to run with --data-file", zap.Int("rows", len(values)))
			}
			screens = append(screens, sc)
		} else {
			if len(args) == 0 {
				return errors.New("no screen files given")
			}
			for _, path := range args {
				sc, err := screen.LoadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				screens = append(screens, sc)
			}
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		for _, sc := range screens {
			err := st.CreateScreen(ctx, sc)
			if errors.Is(err, store.ErrExists) && importReplace {
				err = st.UpdateScreen(ctx, sc.Name, sc)
			}
			if err != nil {
				return fmt.Errorf("import %s: %w", sc.Name, err)
			}
			fmt.Printf("Imported %s (%d fields, %d steps)\n", sc.Name, len(sc.Fields), len(sc.Steps))
			for _, w := range screen.Warnings(sc) {
				fmt.Printf("  Warning: %s\n", w)
			}
		}
		return nil
	},
}

var screensDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a catalog screen; its submission history is kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.DeleteScreen(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var historyLimit int

var screensHistoryCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show recorded submissions, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		subs, err := st.ListSubmissions(cmd.Context(), name, historyLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"submissions": subs})
		}
		for _, s := range subs {
			fmt.Printf("%5d  %s  %-24s %-9s %s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Screen, s.Status, s.Message)
		}
		return nil
	},
}

func init() {
	screensImportCmd.Flags().BoolVar(&importReplace, "replace", false, "Replace screens that already exist")
	screensImportCmd.Flags().StringVar(&importName, "name", "", "Screen name for CSV import")
	screensImportCmd.Flags().StringVar(&importFields, "fields", "", "Field rules CSV")
	screensImportCmd.Flags().StringVar(&importNavigation, "navigation", "", "Navigation steps CSV")
	screensImportCmd.Flags().StringVar(&importData, "data", "", "Sample data CSV (optional)")
	screensHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum submissions to show (0 for all)")

	screensCmd.AddCommand(screensListCmd, screensShowCmd, screensImportCmd, screensDeleteCmd, screensHistoryCmd)
	rootCmd.AddCommand(screensCmd)
}
