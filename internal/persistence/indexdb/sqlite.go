package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"caravan.ai/internal/protocol"
	"caravan.ai/internal/sim/tuning"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index of plan events. The plan log
// stays the source of truth; the index drops writes when it falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropPlan    atomic.Uint64
	dropFailure atomic.Uint64
	// writeErrors counts failed begin/exec/commit calls in the writer loop.
	writeErrors atomic.Uint64
}

type reqKind int

const (
	reqPlan reqKind = iota + 1
	reqFailure
)

type req struct {
	kind reqKind
	ev   protocol.PlanEvent
}

type Stats struct {
	DropPlanTotal    uint64
	DropFailureTotal uint64
	WriteErrorTotal  uint64
	QueueDepth       int
	QueueCapacity    int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			map_digest TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			unit_id TEXT NOT NULL,
			strategy TEXT NOT NULL,
			state TEXT,
			location_json TEXT NOT NULL,
			steps INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick, unit_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_unit_tick ON plans(unit_id, tick);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			unit_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			connection INTEGER,
			good TEXT,
			amount INTEGER,
			PRIMARY KEY (run_id, tick, unit_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS failures (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			unit_id TEXT NOT NULL,
			type TEXT NOT NULL,
			code TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, tick, unit_id, type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_failures_code ON failures(code, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropPlanTotal:    s.dropPlan.Load(),
		DropFailureTotal: s.dropFailure.Load(),
		WriteErrorTotal:  s.writeErrors.Load(),
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
	}
}

// RecordPlan queues ev. PLAN events land in plans/steps, everything else in
// failures.
func (s *SQLiteIndex) RecordPlan(ev protocol.PlanEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	kind, drops := reqPlan, &s.dropPlan
	if ev.Type != protocol.TypePlan {
		kind, drops = reqFailure, &s.dropFailure
	}
	select {
	case s.ch <- req{kind: kind, ev: ev}:
	default:
		drops.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) drop(kind reqKind) {
	if kind == reqPlan {
		s.dropPlan.Add(1)
		return
	}
	s.dropFailure.Add(1)
}

// RecordRun stores the run's inputs synchronously, before any tick runs.
func (s *SQLiteIndex) RecordRun(runID, mapDigest string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,map_digest,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?)`,
		runID, mapDigest, hex.EncodeToString(sum[:]), string(b), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertPlan, _ := s.db.Prepare(`INSERT OR REPLACE INTO plans(run_id,tick,unit_id,strategy,state,location_json,steps) VALUES(?,?,?,?,?,?,?)`)
	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,tick,unit_id,seq,kind,connection,good,amount) VALUES(?,?,?,?,?,?,?,?)`)
	insertFailure, _ := s.db.Prepare(`INSERT OR REPLACE INTO failures(run_id,tick,unit_id,type,code,error) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertPlan, insertStep, insertFailure} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		pendPlan      uint64
		pendFailure   uint64
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	// lost moves everything in the open transaction to the drop counters.
	lost := func() {
		s.dropPlan.Add(pendPlan)
		s.dropFailure.Add(pendFailure)
	}
	reset := func() {
		tx = nil
		opCount = 0
		pendPlan, pendFailure = 0, 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
			lost()
		}
		reset()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrors.Add(1)
		_ = tx.Rollback()
		lost()
		reset()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-idle.C:
			flushIfNeeded()
			continue
		}

		begin()
		if tx == nil {
			s.drop(r.kind)
			continue
		}
		ev := r.ev
		switch r.kind {
		case reqPlan:
			if insertPlan == nil || insertStep == nil {
				s.drop(r.kind)
				continue
			}
			loc, _ := json.Marshal(ev.Location)
			if _, err := tx.Stmt(insertPlan).Exec(ev.RunID, int64(ev.Tick), ev.UnitID, ev.Strategy, ev.State, string(loc), len(ev.Steps)); err != nil {
				s.drop(r.kind)
				rollback()
				continue
			}
			opCount++
			ok := true
			for i, st := range ev.Steps {
				if _, err := tx.Stmt(insertStep).Exec(ev.RunID, int64(ev.Tick), ev.UnitID, i, st.Kind, st.Connection, st.Good, st.Amount); err != nil {
					ok = false
					break
				}
				opCount++
			}
			if !ok {
				s.drop(r.kind)
				rollback()
				continue
			}
			pendPlan++

		case reqFailure:
			if insertFailure == nil {
				s.drop(r.kind)
				continue
			}
			if _, err := tx.Stmt(insertFailure).Exec(ev.RunID, int64(ev.Tick), ev.UnitID, ev.Type, ev.Code, ev.Error); err != nil {
				s.drop(r.kind)
				rollback()
				continue
			}
			opCount++
			pendFailure++
		}
		flushIfNeeded()
	}
}
