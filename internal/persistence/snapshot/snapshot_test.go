package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func sample(tick uint64) SnapshotV1 {
	return SnapshotV1{
		Header:    Header{RunID: "run-1", Tick: tick},
		MapDigest: "abc",
		UnitSpeed: 2,
		Units: []UnitV1{{
			ID:       "u1",
			Coins:    40,
			Cargo:    map[string]int{"SALT": 3},
			Location: LocationV1{Connection: 5, Progress: 0.25, Backward: true},
			Strategy: StrategyV1{Kind: "SHUTTLE_TRADE", GoodA: "SALT", GoodZ: "CLOTH", AreaA: "CITY_1", AreaZ: "CITY_2", State: "BUY_Z"},
			Pending:  []StepV1{{Kind: "MOVE", Connection: 5}, {Kind: "SELL", Good: "SALT"}},
		}},
	}
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 120)
	if err := WriteSnapshot(path, sample(120)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil || h.Tick != 120 || h.RunID != "run-1" || h.Version != Version {
		t.Fatalf("header=%+v err=%v", h, err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got.Units) != 1 {
		t.Fatalf("units=%d", len(got.Units))
	}
	u := got.Units[0]
	if u.Cargo["SALT"] != 3 || u.Location.Connection != 5 || !u.Location.Backward || u.Strategy.State != "BUY_Z" || len(u.Pending) != 2 {
		t.Fatalf("unit=%+v", u)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("empty dir should have no snapshot")
	}
	for _, tick := range []uint64{9, 100, 20} {
		if err := WriteSnapshot(Path(dir, tick), sample(tick)); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.snap.zst"), []byte("x"), 0o644)
	if got := Latest(dir); got != Path(dir, 100) {
		t.Fatalf("Latest=%s", got)
	}
}

func TestReadSnapshot_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error")
	}
}
