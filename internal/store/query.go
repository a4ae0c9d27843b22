package store

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/model"
)

const runColumns = "id, source, status, total, processed, persisted, tiers, error, started_at, finished_at"

func listRunsQuery(f RunFilter, ph sq.PlaceholderFormat) (string, []any, error) {
	q := sq.Select(runColumns).From("runs").OrderBy("started_at DESC").PlaceholderFormat(ph)
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	q = q.Limit(limitOf(f.Limit))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q.ToSql()
}

func listRowsQuery(f RowFilter, ph sq.PlaceholderFormat) (string, []any, error) {
	q := sq.Select("mc, company_name, address, email, phone, tier").
		From("result_rows").
		Where(sq.Eq{"run_id": f.RunID}).
		OrderBy("seq").
		PlaceholderFormat(ph)
	if f.Tier != "" {
		q = q.Where(sq.Eq{"tier": string(f.Tier)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q.ToSql()
}

func limitOf(n int) uint64 {
	if n <= 0 {
		return defaultListLimit
	}
	return uint64(n)
}

func marshalTiers(tiers map[model.Tier]int) (string, error) {
	if tiers == nil {
		tiers = map[model.Tier]int{}
	}
	b, err := json.Marshal(tiers)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal tier counts")
	}
	return string(b), nil
}

func unmarshalTiers(raw string, r *model.Run) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &r.Tiers); err != nil {
		return eris.Wrap(err, "store: unmarshal tier counts")
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}
