package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testDefinitions = `
components:
  - id: section
    version: v1
    kind: design
    slots:
      - name: body
        default_content: "<p>empty</p>"
    cache:
      tags: [section]
  - id: heading
    version: v1
    kind: design
    props:
      - name: text
        inline: true
  - id: chart
    version: v5
    kind: code
`

const testRecords = `[
  {"uuid": "H", "component_id": "heading", "parent_uuid": "S", "slot": "body",
   "inputs": {"text": {"expression": "upper(site.title)"}}},
  {"uuid": "S", "component_id": "section"},
  {"uuid": "C", "component_id": "chart"}
]`

const testData = `
sources:
  site:
    value: {title: hello}
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    flags
		wantErr bool
	}{
		{
			name: "defaults",
			args: []string{"d.yaml", "r.json"},
			want: flags{format: "html", defs: "d.yaml", records: "r.json"},
		},
		{
			name: "all options",
			args: []string{"--preview", "--format=json", "--data=s.yaml", "--skip-broken", "d.yaml", "r.json"},
			want: flags{preview: true, format: "json", data: "s.yaml", skipBroken: true, defs: "d.yaml", records: "r.json"},
		},
		{name: "bad format", args: []string{"--format=xml", "d.yaml", "r.json"}, wantErr: true},
		{name: "unknown option", args: []string{"--fast", "d.yaml", "r.json"}, wantErr: true},
		{name: "missing files", args: []string{"d.yaml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(flags{})); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunRender(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"defs.yaml":    testDefinitions,
		"records.json": testRecords,
		"data.yaml":    testData,
	})
	t.Setenv("PAGETREE_SIGNING_KEY", "cli-test-key")
	t.Setenv("PAGETREE_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	args := []string{"--data=" + filepath.Join(dir, "data.yaml"), filepath.Join(dir, "defs.yaml"), filepath.Join(dir, "records.json")}
	if err := run(context.Background(), "render", args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\n%s", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{
		"<!-- pagetree-start:S -->",
		"<!-- pagetree-prop-start:H/text -->HELLO<!-- pagetree-prop-end:H/text -->",
		`src="/pagetree/assets/chart/v5.js"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunRenderPreviewJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"defs.yaml":    testDefinitions,
		"records.json": testRecords,
		"data.yaml":    testData,
	})
	t.Setenv("PAGETREE_SIGNING_KEY", "cli-test-key")
	t.Setenv("PAGETREE_DRAFT_PREFIX", "/drafts")
	t.Setenv("PAGETREE_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	args := []string{"--preview", "--format=json", "--data=" + filepath.Join(dir, "data.yaml"),
		filepath.Join(dir, "defs.yaml"), filepath.Join(dir, "records.json")}
	if err := run(context.Background(), "render", args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var roots []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &roots); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	if roots[0]["kind"] != "design" || roots[1]["kind"] != "code" {
		t.Errorf("kinds = %v, %v", roots[0]["kind"], roots[1]["kind"])
	}
	script, _ := roots[1]["script_url"].(string)
	if !strings.HasPrefix(script, "/drafts/chart/v5.js?t=") {
		t.Errorf("script_url = %q, want signed draft URL", script)
	}
}

func TestRunRenderEncryptedDrafts(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"defs.yaml":    testDefinitions,
		"records.json": testRecords,
	})
	t.Setenv("PAGETREE_SIGNING_KEY", "cli-test-key")
	t.Setenv("PAGETREE_ENCRYPT_DRAFTS", "true")
	t.Setenv("PAGETREE_LOG_LEVEL", "error")

	var stdout bytes.Buffer
	args := []string{"--preview", "--format=json", filepath.Join(dir, "defs.yaml"), filepath.Join(dir, "records.json")}
	if err := run(context.Background(), "render", args, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var roots []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &roots); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	script, _ := roots[1]["script_url"].(string)
	_, token, ok := strings.Cut(script, "?t=")
	if !ok || token == "" || strings.Contains(token, ".") {
		t.Errorf("script_url = %q, want an opaque encrypted token", script)
	}
}

func TestRunValidate(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"defs.yaml":   testDefinitions,
		"good.json":   testRecords,
		"broken.yaml": "- {uuid: A, component_id: heading, parent_uuid: ghost, slot: body}\n",
	})
	t.Setenv("PAGETREE_LOG_LEVEL", "error")
	defs := filepath.Join(dir, "defs.yaml")

	var stdout bytes.Buffer
	if err := run(context.Background(), "validate", []string{defs, filepath.Join(dir, "good.json")}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("validate good: %v", err)
	}
	if got := stdout.String(); got != "ok: 2 roots, 3 nodes\n" {
		t.Errorf("output = %q", got)
	}

	err := run(context.Background(), "validate", []string{defs, filepath.Join(dir, "broken.yaml")}, &stdout, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("validate broken error = %v, want dangling parent", err)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"debug", "text", false},
		{"WARN", "json", false},
		{"loud", "text", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			_, err := newLogger(&bytes.Buffer{}, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
