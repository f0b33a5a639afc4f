package artifact

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var screenPage = template.Must(template.New("screen").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>TN5250 Screen Capture</title>
    <style>
        body { font-family: 'Courier New', monospace; background-color: #000; color: #00ff00; white-space: pre; margin: 20px; line-height: 1.2; }
        .screen-content { border: 1px solid #00ff00; padding: 10px; background-color: #001100; }
        .timestamp { color: #ffff00; font-size: 12px; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="timestamp">Captured: {{.Captured}}</div>
    <div class="screen-content">{{.Screen}}</div>
</body>
</html>
`))

// Store manages artifact storage for a run.
type Store struct {
	RunID   string
	BaseDir string // <root>/.greenscreen/runs/<run_id>

	mu    sync.Mutex
	files []string
	now   func() time.Time
}

// New creates a store for a given run ID, rooted at workDir.
func New(runID, workDir string) (*Store, error) {
	base := filepath.Join(workDir, ".greenscreen", "runs", runID)
	if err := os.MkdirAll(filepath.Join(base, "screens"), 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Store{RunID: runID, BaseDir: base, now: time.Now}, nil
}

// Snapshot saves a screen capture as name.html and name.txt under screens/.
func (s *Store) Snapshot(name, screen string) error {
	dir := filepath.Join(s.BaseDir, "screens")
	name = sanitize(name)

	if err := os.WriteFile(filepath.Join(dir, name+".txt"), []byte(screen), 0o644); err != nil {
		return err
	}

	var b strings.Builder
	err := screenPage.Execute(&b, struct{ Captured, Screen string }{
		Captured: s.now().Format("2006-01-02 15:04:05"),
		Screen:   screen,
	})
	if err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	htmlPath := filepath.Join(dir, name+".html")
	if err := os.WriteFile(htmlPath, []byte(b.String()), 0o644); err != nil {
		return err
	}

	s.mu.Lock()
	s.files = append(s.files, htmlPath)
	s.mu.Unlock()
	return nil
}

// StepName returns the snapshot name for a navigation step, e.g.
// "step_02_option_with_id".
func StepName(order int, action string) string {
	return fmt.Sprintf("step_%02d_%s", order, action)
}

// Files returns the HTML snapshots written so far, in write order.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.files))
	copy(cp, s.files)
	return cp
}

// WriteResult writes the final result JSON.
func (s *Store) WriteResult(result any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.BaseDir, "result.json"), data, 0o644)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}
