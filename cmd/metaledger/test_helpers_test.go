package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"metaledger/internal/config"
	"metaledger/internal/testsupport"
)

const (
	testSourceRequirements = `{"LearningResourceIdentifier": "Required", "Name": "Required"}`
	testTargetMapping      = `{"Course": {"CourseCode": "LearningResourceIdentifier", "CourseTitle": "Name", "CourseProviderName": "SOURCESYSTEM"}}`
	testTargetRequirements = `{"Course": {"CourseCode": "Required", "CourseTitle": "Required"}}`
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	index      *httptest.Server
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(index.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithSourceSystem("ORG"),
		testsupport.WithIndexEndpoint(index.URL),
		testsupport.WithSchemas(testSourceRequirements, testTargetMapping, testTargetRequirements),
	)
	testsupport.WriteJSONLines(t, cfg.Source.File,
		map[string]any{"LearningResourceIdentifier": "C1", "Name": "Intro"},
		map[string]any{"LearningResourceIdentifier": "C2", "Name": ""},
	)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, index: index}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[source]
system_name = %q
file = %q
format = %q

[schemas]
source_validation = %q
target_mapping = %q
target_validation = %q

[index]
endpoint = %q

[logging]
level = "error"
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Source.SystemName,
		cfg.Source.File,
		cfg.Source.Format,
		cfg.Schemas.SourceValidation,
		cfg.Schemas.TargetMapping,
		cfg.Schemas.TargetValidation,
		cfg.Index.Endpoint,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
