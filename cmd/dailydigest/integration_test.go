package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/vualidon/DailyDigestAI/internal/tuitest"
)

const listingFixture = `[
  {
    "paper": {
      "id": "2401.12345",
      "title": "Adaptive Tokenization for Long Contexts",
      "summary": "We study adaptive tokenization.",
      "upvotes": 17,
      "publishedAt": "2024-01-15T00:00:00Z",
      "authors": [{"name": "Jo Researcher"}]
    },
    "title": "Adaptive Tokenization for Long Contexts",
    "publishedAt": "2024-01-15T00:00:00Z"
  }
]`

func TestDailyDigestRendersListing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer server.Close()

	workDir := t.TempDir()
	configPath := filepath.Join(workDir, "config.yml")
	configBody := fmt.Sprintf(`feed:
  url: %s
store:
  backend: file
  path: %s
log:
  path: %s
`, server.URL, filepath.Join(workDir, "paper_states.json"), filepath.Join(workDir, "digest.log"))
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	binary := buildBinary(t)
	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{binary, "-no-alt-screen", "-config", configPath},
		Dir:     workDir,
		Width:   100,
		Height:  32,
		Steps: []tuitest.Step{
			{Delay: 2 * time.Second},
			{Input: []byte("q")},
		},
		Timeout:        10 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}

	if !rec.ContainsText("DailyDigest") {
		t.Fatal("app header never rendered")
	}
	if !rec.ContainsText("Adaptive Tokenization for Long Contexts") {
		t.Fatal("listing row never rendered")
	}
}

func buildBinary(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime caller unavailable")
	}
	cmdDir := filepath.Dir(file)

	name := "dailydigest-integration"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	binPath := filepath.Join(t.TempDir(), name)
	cmd := exec.Command("go", "build", "-o", binPath, ".")
	cmd.Dir = cmdDir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build CLI: %v\n%s", err, output)
	}
	return binPath
}
