package indexdb

import (
	"database/sql"

	"caravan.ai/internal/protocol"
)

// Reader queries an index written by SQLiteIndex.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Runs() ([]string, error) {
	rows, err := r.db.Query(`SELECT run_id FROM runs ORDER BY started_at, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Reader) PlanCount(runID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM plans WHERE run_id=?`, runID).Scan(&n)
	return n, err
}

// FailureCounts groups failures and blocked trades of a run by code.
func (r *Reader) FailureCounts(runID string) (map[string]int, error) {
	rows, err := r.db.Query(`SELECT code, COUNT(*) FROM failures WHERE run_id=? GROUP BY code`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			code string
			n    int
		)
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[code] = n
	}
	return out, rows.Err()
}

// StepsFor returns every step planned for unitID in a run, in tick order.
func (r *Reader) StepsFor(runID, unitID string) ([]protocol.StepDTO, error) {
	rows, err := r.db.Query(`SELECT kind, connection, good, amount FROM steps WHERE run_id=? AND unit_id=? ORDER BY tick, seq`, runID, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []protocol.StepDTO
	for rows.Next() {
		var (
			st   protocol.StepDTO
			conn sql.NullInt64
			good sql.NullString
			amt  sql.NullInt64
		)
		if err := rows.Scan(&st.Kind, &conn, &good, &amt); err != nil {
			return nil, err
		}
		st.Connection = int(conn.Int64)
		st.Good = good.String
		st.Amount = int(amt.Int64)
		out = append(out, st)
	}
	return out, rows.Err()
}
