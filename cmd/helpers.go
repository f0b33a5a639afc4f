package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/greenscreen/internal/engine"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/store"
)

// parseInputs converts ["key=value", ...] to a map.
func parseInputs(raw []string) map[string]string {
	m := map[string]string{}
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}

// submissionFlags are shared by validate, explain and run.
type submissionFlags struct {
	data     []string
	params   []string
	dataFile string
}

func (f *submissionFlags) values() (map[string]string, error) {
	values := map[string]string{}
	if f.dataFile != "" {
		raw, err := os.ReadFile(f.dataFile)
		if err != nil {
			return nil, err
		}
		// YAML is a superset of JSON.
		if err := yaml.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.dataFile, err)
		}
	}
	for k, v := range parseInputs(f.data) {
		values[k] = v
	}
	return values, nil
}

func (f *submissionFlags) submission(sc *screen.Screen) (engine.Submission, error) {
	values, err := f.values()
	if err != nil {
		return engine.Submission{}, err
	}
	params := cfg.Params()
	for k, v := range parseInputs(f.params) {
		params[strings.ToLower(k)] = v
	}
	return engine.Submission{Screen: sc.Name, Values: values, Params: params}, nil
}

// loadScreen resolves ref as a YAML file path, then a screen name in the
// screens directory, then a screen name in the catalog database.
func loadScreen(ctx context.Context, ref string) (*screen.Screen, error) {
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, filepath.Separator) {
		return screen.LoadFile(ref)
	}
	if info, err := os.Stat(cfg.ScreensDir); err == nil && info.IsDir() {
		sc, err := screen.Dir{Path: cfg.ScreensDir}.Get(ref)
		if err == nil {
			return sc, nil
		}
		var nf *screen.NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}
	if _, err := os.Stat(cfg.DatabasePath); err == nil {
		st, err := openStore()
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.GetScreen(ctx, ref)
	}
	return nil, &screen.NotFoundError{Name: ref}
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.DatabasePath, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders an engine result for people.
func printResult(result *engine.Result) {
	for _, m := range result.Messages {
		fmt.Println(m)
	}
	for _, s := range result.Steps {
		line := fmt.Sprintf("[%d] %-15s %-8s %s", s.Order, s.Action, s.Status, s.Message)
		fmt.Println(strings.TrimRight(line, " "))
		for _, k := range s.Keys {
			fmt.Printf("      %s\n", k)
		}
	}
	if len(result.Plan) > 0 {
		fmt.Println("Form keystrokes:")
		for _, k := range result.Plan {
			fmt.Printf("  %s\n", k)
		}
	}
	for _, e := range result.Errors {
		fmt.Printf("  Error: %s\n", e.Message)
		if e.Hint != "" {
			fmt.Printf("  Hint: %s\n", e.Hint)
		}
	}
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	fmt.Printf("Run ID: %s\n", result.RunID)
}
