package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		filename      string
		explicit      bool
		env           map[string]string
		expectError   bool
		errorContains string
		wantURL       string
		wantNames     string
	}{
		{
			name: "File Only",
			content: `
pushgateway_url: "http://file:9091"
counter_name: "seq_errors_total"
`,
			wantURL: "http://file:9091",
		},
		{
			name: "Env Overrides File",
			content: `
pushgateway_url: "http://file:9091"
counter_name: "seq_errors_total"
`,
			env: map[string]string{
				"SEQ_APP_SETTING_PUSHGATEWAYURL":         "http://env:9091",
				"SEQ_APP_SETTING_APPLICATIONNAMEKEYLIST": "App",
			},
			wantURL:   "http://env:9091",
			wantNames: "App",
		},
		{
			name:     "Missing Default File Uses Env",
			filename: "non_existent_config.yaml",
			env:      map[string]string{"SEQ_APP_SETTING_PUSHGATEWAYURL": "http://env:9091"},
			wantURL:  "http://env:9091",
		},
		{
			name:          "Missing Explicit File",
			filename:      "non_existent_config.yaml",
			explicit:      true,
			expectError:   true,
			errorContains: "no such file or directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := tt.filename
			if path == "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
					t.Fatal(err)
				}
			} else {
				path = filepath.Join(t.TempDir(), path)
			}

			cfg, err := loadConfig(path, tt.explicit)
			if (err != nil) != tt.expectError {
				t.Fatalf("loadConfig() error = %v, expectError %v", err, tt.expectError)
			}
			if err != nil {
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got '%v'", tt.errorContains, err)
				}
				return
			}
			if cfg.PushgatewayURL != tt.wantURL {
				t.Errorf("Expected URL '%s', got '%s'", tt.wantURL, cfg.PushgatewayURL)
			}
			if cfg.PropertyNames != tt.wantNames {
				t.Errorf("Expected property names '%s', got '%s'", tt.wantNames, cfg.PropertyNames)
			}
		})
	}
}

func TestRootCmd_PushesEvents(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		last  string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		last = string(body)
		mu.Unlock()
	}))
	defer gateway.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgContent := "pushgateway_url: \"" + gateway.URL + "\"\ncounter_name: seq_errors_total\nproperty_names: |\n  App\n  Service\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o600); err != nil {
		t.Fatal(err)
	}

	events := strings.Join([]string{
		`{"@t":"2024-03-01T10:00:00Z","@m":"disk full","App":"billing-svc"}`,
		`{"@t":"2024-03-01T10:00:01Z","@mt":"timeout in {Service}","Service":"auth"}`,
	}, "\n") + "\n"

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "--log-level", "debug"})
	cmd.SetIn(strings.NewReader(events))
	cmd.SetErr(&stderr)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v\n%s", err, stderr.String())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("Expected 2 pushes, got %d", len(paths))
	}
	if paths[0] != "/metrics/job/seq_errors_total/instance/default" {
		t.Errorf("Unexpected push path: %s", paths[0])
	}
	for _, want := range []string{
		`seq_errors_total{ApplicationName="billing-svc",Message="disk full"} 1`,
		`seq_errors_total{ApplicationName="auth",Message="timeout in {Service}"} 1`,
	} {
		if !strings.Contains(last, want) {
			t.Errorf("Expected last push to contain %q, got:\n%s", want, last)
		}
	}
	if !strings.Contains(stderr.String(), "event handler started") {
		t.Errorf("Expected startup log on stderr, got:\n%s", stderr.String())
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("counter_name: seq_errors_total\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetErr(io.Discard)
	cmd.SetOut(io.Discard)

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "pushgateway_url must be set") {
		t.Fatalf("Expected missing URL error, got %v", err)
	}
}

func TestRootCmd_CancelReleasesLiveInput(t *testing.T) {
	defer leaktest.Check(t)()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfgContent := "pushgateway_url: \"http://127.0.0.1:1\"\ncounter_name: seq_errors_total\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o600); err != nil {
		t.Fatal(err)
	}

	// A pipe whose writer stays open behaves like Seq's stdin: reads block.
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer pw.Close()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath})
	cmd.SetIn(pr)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ExecuteContext() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for the command to return after cancellation")
	}
}
