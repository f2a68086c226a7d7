package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"caravan.ai/internal/persistence/indexdb"
	persistlog "caravan.ai/internal/persistence/log"
	"caravan.ai/internal/protocol"
)

func TestBuildRuntime_RunsRepoScenario(t *testing.T) {
	dataDir := t.TempDir()
	rt, err := buildRuntime(runtimeConfig{
		ConfigDir: "../../configs",
		DataDir:   dataDir,
		RunID:     "run-test",
		Fast:      true,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if err := rt.Driver.Run(context.Background(), 120); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := rt.Driver.Stats()
	if st.Ticks != 120 || st.Plans == 0 || st.Moves == 0 || st.Trades == 0 {
		t.Fatalf("scenario made no progress: %+v", st)
	}
	rec := httptest.NewRecorder()
	metricsHandler(rt)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `caravan_tick{run="run-test"} 120`) {
		t.Fatalf("metrics missing tick:\n%s", rec.Body.String())
	}
	rt.Close()

	files, err := persistlog.ListFiles(filepath.Join(dataDir, "plans"), persistlog.PlanPrefix)
	if err != nil || len(files) == 0 {
		t.Fatalf("plan log files=%v err=%v", files, err)
	}
	logged := 0
	for _, f := range files {
		if err := persistlog.ReadPlanEvents(f, func(ev protocol.PlanEvent) error {
			if ev.Type == protocol.TypePlan {
				logged++
			}
			return ev.Validate()
		}); err != nil {
			t.Fatalf("ReadPlanEvents: %v", err)
		}
	}
	if logged != st.Plans {
		t.Fatalf("logged plans=%d want %d", logged, st.Plans)
	}

	r, err := indexdb.OpenReader(filepath.Join(dataDir, "index", "plans.sqlite"))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	n, err := r.PlanCount("run-test")
	if err != nil || n != st.Plans {
		t.Fatalf("indexed plans=%d want %d err=%v", n, st.Plans, err)
	}

	resumed, err := buildRuntime(runtimeConfig{
		ConfigDir:  "../../configs",
		DataDir:    dataDir,
		DisableDB:  true,
		DisableLog: true,
		Resume:     true,
		Fast:       true,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer resumed.Close()
	if resumed.RunID != "run-test" || resumed.Driver.Tick() != 100 {
		t.Fatalf("resumed run=%s tick=%d, want run-test at the tick 100 snapshot", resumed.RunID, resumed.Driver.Tick())
	}
	if len(resumed.Driver.Units()) != 3 {
		t.Fatalf("resumed units=%d", len(resumed.Driver.Units()))
	}
}

func TestDataPath(t *testing.T) {
	if got := dataPath("/srv/data", "data/plans"); got != filepath.Join("/srv/data", "plans") {
		t.Fatalf("got %s", got)
	}
	if got := dataPath("/srv/data", "/abs/index.sqlite"); got != "/abs/index.sqlite" {
		t.Fatalf("got %s", got)
	}
	if got := dataPath("", "data/plans"); got != "data/plans" {
		t.Fatalf("got %s", got)
	}
}
