package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "aoa"

// WorkspaceDirName is the project-local config/state directory, matching
// original_source's AOA_HOME_FILE convention of keeping a per-project
// identity file alongside the global home directory.
const WorkspaceDirName = "." + AppName

// HomeDir returns the user's AOA configuration home: ~/.aoa
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// projectHome describes the per-project identity file written at
// ./.aoa/home.json, resolved once and reused across a project's lifetime so
// ProjectID is stable across process restarts.
type projectHome struct {
	ProjectID string `json:"project_id"`
}

// Bootstrap ensures ~/.aoa exists with its default config and pattern
// library, and that the current project has a ./.aoa/home.json identity
// file. Safe to call multiple times — only creates missing items, never
// overwrites user edits.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create home dir %s: %w", root, err)
	}

	created := 0
	defaults := map[string]string{
		filepath.Join(root, "config.yaml"):    defaultConfig,
		filepath.Join(root, "patterns.json"):  defaultPatterns,
	}
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if err := ensureProjectHome(logger); err != nil {
		logger.Warn("failed to write project home file", zap.Error(err))
	}

	if created > 0 {
		logger.Info("AOA bootstrap complete", zap.String("home", root), zap.Int("files_created", created))
	} else {
		logger.Debug("AOA home directory OK", zap.String("home", root))
	}

	return nil
}

// ensureProjectHome writes ./.aoa/home.json with a fresh project_id if one
// does not already exist in the current working directory.
func ensureProjectHome(logger *zap.Logger) error {
	if err := os.MkdirAll(WorkspaceDirName, 0755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}

	path := filepath.Join(WorkspaceDirName, "home.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	home := projectHome{ProjectID: uuid.NewString()}
	data, err := json.MarshalIndent(home, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	logger.Info("created project identity", zap.String("path", path), zap.String("project_id", home.ProjectID))
	return nil
}

// ProjectID reads the current project's identity from ./.aoa/home.json.
// It does not create the file; a missing file is an error (Bootstrap is
// what writes it).
func ProjectID() (string, error) {
	path := filepath.Join(WorkspaceDirName, "home.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read project home: %w", err)
	}
	var home projectHome
	if err := json.Unmarshal(data, &home); err != nil {
		return "", fmt.Errorf("parse project home: %w", err)
	}
	return home.ProjectID, nil
}

// ──────────────────────────────────────────────────────────────
// Embedded default file contents
// ──────────────────────────────────────────────────────────────

const defaultConfig = `# AOA Observatory configuration — auto-generated on first launch.
# Edit freely; this file is never overwritten once it exists.

server:
  host: 127.0.0.1
  port: 8080
  mode: release

storage:
  path: ~/.aoa/intent_store.json
  max_records: 500

patterns:
  path: ~/.aoa/patterns.json
  hot_reload: true

database:
  type: ""                # "" disables the evaluated-prediction archive; sqlite | postgres
  dsn: ~/.aoa/archive.db

log:
  level: info              # debug | info | warn | error
  format: json              # json | console

tracker:
  prediction_window: 15m
  sweep_interval: 30s

learner:
  tuning_interval: 5m
  orphan_tag_threshold: 20

event_bus:
  wal_enabled: false       # true writes a WAL before dispatching C3->C5/C6 events
  wal_dir: ~/.aoa/wal
`

// defaultPatterns seeds the PatternLibrary document with the tables carried
// over from original_source/.claude/hooks/aoa-intent-capture.py's
// INTENT_PATTERNS and TOOL_TAGS (SPEC_FULL.md §3.1).
const defaultPatterns = `{
  "domains": {
    "coding": {
      "edit": ["*.go", "*.py", "*.js", "*.ts", "*.rs", "*.java"],
      "test": ["*_test.go", "test_*.py", "*.test.js"],
      "build": ["Makefile", "go.mod", "package.json", "Cargo.toml"]
    },
    "docs": {
      "write": ["*.md", "*.rst", "*.adoc"]
    },
    "infra": {
      "provision": ["*.tf", "*.yaml", "*.yml", "Dockerfile"]
    }
  }
}
`
