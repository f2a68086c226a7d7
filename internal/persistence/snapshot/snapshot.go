package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the driver state at the end of a tick: enough to resume
// every unit mid-plan on the same map.
type SnapshotV1 struct {
	Header Header `json:"header"`

	MapDigest string  `json:"map_digest"`
	UnitSpeed float64 `json:"unit_speed"`

	Units []UnitV1 `json:"units"`
}

type UnitV1 struct {
	ID       string         `json:"id"`
	Coins    int            `json:"coins"`
	Cargo    map[string]int `json:"cargo,omitempty"`
	Location LocationV1     `json:"location"`
	Strategy StrategyV1     `json:"strategy"`
	// Pending is the unexecuted tail of the unit's current plan.
	Pending []StepV1 `json:"pending,omitempty"`
}

// LocationV1 sets Area when parked, Connection otherwise.
type LocationV1 struct {
	Area       string  `json:"area,omitempty"`
	Connection int     `json:"connection,omitempty"`
	Progress   float64 `json:"progress,omitempty"`
	Backward   bool    `json:"backward,omitempty"`
}

type StrategyV1 struct {
	Kind   string            `json:"kind"`
	GoodA  string            `json:"good_a,omitempty"`
	GoodZ  string            `json:"good_z,omitempty"`
	AreaA  string            `json:"area_a,omitempty"`
	AreaZ  string            `json:"area_z,omitempty"`
	State  string            `json:"state,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

type StepV1 struct {
	Kind       string `json:"kind"`
	Connection int    `json:"connection,omitempty"`
	Good       string `json:"good,omitempty"`
	Amount     int    `json:"amount,omitempty"`
}

// Path is where the snapshot for tick lives under dir.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}

// Latest returns the highest-tick snapshot in dir, or "" if there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded body,
// all zstd compressed. The file is renamed into place once complete.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	// The header is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
