package restriction

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_restriction_rules.sql
var schema string

var ErrRuleNotFound = errors.New("restriction rule not found")

// SQLiteService. restriction rules stored in a sqlite database file.
type SQLiteService struct {
	db   *sql.DB
	path string
}

func OpenSQLiteService(path string) (*SQLiteService, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating restriction db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening restriction db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating restriction db: %w", err)
	}
	return &SQLiteService{db: db, path: path}, nil
}

func (s *SQLiteService) Close() error {
	return s.db.Close()
}

func (s *SQLiteService) Path() string {
	return s.path
}

func (s *SQLiteService) AddRule(ctx context.Context, r Rule) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, util.WrapErrorf(err, util.ErrBadParamInput, "add restriction rule")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO restriction_rules (graph_name, segment_id, scope, valid_from, valid_until, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.GraphName, int64(r.SegmentID), int(r.Scope), nullableTime(r.From), nullableTime(r.Until), r.Note)
	if err != nil {
		return 0, fmt.Errorf("inserting restriction rule: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteService) DeleteRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM restriction_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting restriction rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return util.WrapErrorf(ErrRuleNotFound, util.ErrNotFound, "rule %d", id)
	}
	return nil
}

func (s *SQLiteService) Rules(ctx context.Context, graphName string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, graph_name, segment_id, scope, valid_from, valid_until, note
		 FROM restriction_rules WHERE graph_name = ? ORDER BY id`, graphName)
	if err != nil {
		return nil, fmt.Errorf("querying restriction rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *SQLiteService) IsRestricted(ctx context.Context, graphName string, segmentID datastructure.SegmentID,
	forward bool, at time.Time) (bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, graph_name, segment_id, scope, valid_from, valid_until, note
		 FROM restriction_rules WHERE graph_name = ? AND segment_id = ?`, graphName, int64(segmentID))
	if err != nil {
		return false, fmt.Errorf("querying restriction rules: %w", err)
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return false, err
	}
	for _, r := range rules {
		if r.Active(forward, at) {
			return true, nil
		}
	}
	return false, nil
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	out := make([]Rule, 0)
	for rows.Next() {
		var (
			r           Rule
			segID       int64
			scope       int
			from, until sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.GraphName, &segID, &scope, &from, &until, &r.Note); err != nil {
			return nil, fmt.Errorf("scanning restriction rule: %w", err)
		}
		r.SegmentID = datastructure.SegmentID(segID)
		r.Scope = Scope(scope)
		if from.Valid {
			r.From = time.Unix(0, from.Int64).UTC()
		}
		if until.Valid {
			r.Until = time.Unix(0, until.Int64).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
