package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"caravan.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address for observers and metrics (empty to disable)")
		configDir  = flag.String("configs", "./configs", "config directory (tuning.yaml, map.json, units.yaml, market.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		runID      = flag.String("run", "", "run id (default: random uuid)")
		ticks      = flag.Int("ticks", -1, "ticks to run (-1: tuning.yaml, 0: until interrupted)")
		fast       = flag.Bool("fast", false, "ignore tick_rate_hz and run ticks back to back")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite plan index")
		disableLog = flag.Bool("disable_plan_log", false, "disable the compressed plan log")
		disableSnp = flag.Bool("disable_snapshot", false, "disable periodic snapshots")
		resume     = flag.Bool("resume", false, "resume from the latest snapshot")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[planner] ", log.LstdFlags|log.Lmicroseconds)

	cfg := runtimeConfig{
		ConfigDir:  *configDir,
		DataDir:    *dataDir,
		TuningPath: *tuningPath,
		RunID:      *runID,
		DisableDB:  *disableDB,
		DisableLog: *disableLog,
		Fast:       *fast,

		DisableSnapshot: *disableSnp,
		Resume:          *resume,
	}
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if strings.TrimSpace(*addr) != "" {
		srv := httpServer(*addr, rt, logger)
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("ListenAndServe: %v", err)
			}
		}()
	}

	n := *ticks
	if n < 0 {
		n = rt.Tune.Ticks
	}
	if err := rt.Driver.Run(ctx, n); err != nil && err != context.Canceled {
		logger.Printf("driver stopped: %v", err)
	}
	if err := rt.writeSnapshot(rt.Driver.Snapshot()); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
	st := rt.Driver.Stats()
	logger.Printf("run=%s done ticks=%d plans=%d failures=%d blocked=%d trades=%d",
		rt.RunID, st.Ticks, st.Plans, st.Failures, st.Blocked, st.Trades)
}

func httpServer(addr string, rt *runtime, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(rt))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"run_id": rt.RunID,
			"stats":  rt.Driver.Stats(),
		})
	})
	obsSrv := observer.NewServer(rt.Hub, rt.Graph, rt.RunID, logger)
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func metricsHandler(rt *runtime) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := rt.Driver.Stats()
		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP caravan_tick Current driver tick.\n")
		fmt.Fprintf(rw, "# TYPE caravan_tick gauge\n")
		fmt.Fprintf(rw, "caravan_tick{run=%q} %d\n", rt.RunID, st.Ticks)
		fmt.Fprintf(rw, "# HELP caravan_events_total Plan events by kind.\n")
		fmt.Fprintf(rw, "# TYPE caravan_events_total counter\n")
		fmt.Fprintf(rw, "caravan_events_total{run=%q,kind=%q} %d\n", rt.RunID, "plan", st.Plans)
		fmt.Fprintf(rw, "caravan_events_total{run=%q,kind=%q} %d\n", rt.RunID, "failure", st.Failures)
		fmt.Fprintf(rw, "caravan_events_total{run=%q,kind=%q} %d\n", rt.RunID, "blocked", st.Blocked)
		fmt.Fprintf(rw, "# HELP caravan_steps_total Executed steps by kind.\n")
		fmt.Fprintf(rw, "# TYPE caravan_steps_total counter\n")
		fmt.Fprintf(rw, "caravan_steps_total{run=%q,kind=%q} %d\n", rt.RunID, "move", st.Moves)
		fmt.Fprintf(rw, "caravan_steps_total{run=%q,kind=%q} %d\n", rt.RunID, "trade", st.Trades)
		fmt.Fprintf(rw, "caravan_steps_total{run=%q,kind=%q} %d\n", rt.RunID, "switch_state", st.Switches)
		fmt.Fprintf(rw, "# HELP caravan_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE caravan_observers gauge\n")
		fmt.Fprintf(rw, "caravan_observers{run=%q} %d\n", rt.RunID, rt.Hub.Subscribers())
		fmt.Fprintf(rw, "caravan_observer_dropped_total{run=%q} %d\n", rt.RunID, rt.Hub.Dropped())
		if rt.index != nil {
			is := rt.index.Stats()
			fmt.Fprintf(rw, "# HELP caravan_index_dropped_total Index writes dropped under load.\n")
			fmt.Fprintf(rw, "# TYPE caravan_index_dropped_total counter\n")
			fmt.Fprintf(rw, "caravan_index_dropped_total{run=%q,kind=%q} %d\n", rt.RunID, "plan", is.DropPlanTotal)
			fmt.Fprintf(rw, "caravan_index_dropped_total{run=%q,kind=%q} %d\n", rt.RunID, "failure", is.DropFailureTotal)
			fmt.Fprintf(rw, "# HELP caravan_index_write_errors_total Failed index transactions.\n")
			fmt.Fprintf(rw, "# TYPE caravan_index_write_errors_total counter\n")
			fmt.Fprintf(rw, "caravan_index_write_errors_total{run=%q} %d\n", rt.RunID, is.WriteErrorTotal)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
