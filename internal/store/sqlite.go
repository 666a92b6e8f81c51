package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/icp-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS icps (
	client_id         TEXT PRIMARY KEY,
	target_titles     TEXT NOT NULL DEFAULT '[]',
	target_industries TEXT NOT NULL DEFAULT '[]',
	company_sizes     TEXT NOT NULL DEFAULT '[]',
	target_keywords   TEXT NOT NULL DEFAULT '[]',
	exclude_titles    TEXT NOT NULL DEFAULT '[]',
	notes             TEXT NOT NULL DEFAULT '',
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	total        INTEGER NOT NULL DEFAULT 0,
	enriched     INTEGER NOT NULL DEFAULT 0,
	qualified    INTEGER NOT NULL DEFAULT 0,
	exported     INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	client_id          TEXT NOT NULL,
	batch_id           TEXT NOT NULL REFERENCES batches(id),
	status             TEXT NOT NULL DEFAULT 'discovered',
	linkedin_url       TEXT NOT NULL,
	profile_id         TEXT NOT NULL DEFAULT '',
	profile_data       TEXT,
	name               TEXT NOT NULL DEFAULT '',
	headline           TEXT NOT NULL DEFAULT '',
	company            TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	follower_count     INTEGER NOT NULL DEFAULT 0,
	current_job_titles TEXT NOT NULL DEFAULT '[]',
	embedding          TEXT,
	industry           TEXT NOT NULL DEFAULT '',
	industry_reasoning TEXT NOT NULL DEFAULT '',
	company_type       TEXT NOT NULL DEFAULT '',
	company_reasoning  TEXT NOT NULL DEFAULT '',
	icp_score          INTEGER,
	match_reasoning    TEXT NOT NULL DEFAULT '',
	qualified_at       DATETIME,
	error_message      TEXT NOT NULL DEFAULT '',
	retry_count        INTEGER NOT NULL DEFAULT 0,
	scraped_at         DATETIME,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	UNIQUE (client_id, linkedin_url)
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_id ON leads(batch_id);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_batch_status ON leads(batch_id, status);
CREATE INDEX IF NOT EXISTS idx_batches_client_id ON batches(client_id);

CREATE TABLE IF NOT EXISTS profile_cache (
	linkedin_url TEXT PRIMARY KEY,
	profile_id   TEXT NOT NULL DEFAULT '',
	profile_data TEXT NOT NULL,
	scraped_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profile_cache_scraped_at ON profile_cache(scraped_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, clientID, name string) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, client_id, name, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, clientID, name, string(model.BatchStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch")
	}

	return &model.Batch{
		ID:        id,
		ClientID:  clientID,
		Name:      name,
		Status:    model.BatchStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	var b model.Batch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, name, status, total, enriched, qualified, exported, failed, created_at, completed_at
		 FROM batches WHERE id = ?`,
		batchID,
	).Scan(&b.ID, &b.ClientID, &b.Name, &b.Status,
		&b.Counts.Total, &b.Counts.Enriched, &b.Counts.Qualified, &b.Counts.Exported, &b.Counts.Failed,
		&b.CreatedAt, &b.CompletedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", batchID)
	}
	return &b, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, clientID string) ([]model.Batch, error) {
	query := `SELECT id, client_id, name, status, total, enriched, qualified, exported, failed, created_at, completed_at
	          FROM batches WHERE 1=1`
	var args []any
	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var b model.Batch
		if err := rows.Scan(&b.ID, &b.ClientID, &b.Name, &b.Status,
			&b.Counts.Total, &b.Counts.Enriched, &b.Counts.Qualified, &b.Counts.Exported, &b.Counts.Failed,
			&b.CreatedAt, &b.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

func (s *SQLiteStore) UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error {
	var completedAt *time.Time
	if status == model.BatchStatusQualified || status == model.BatchStatusExported {
		now := time.Now().UTC()
		completedAt = &now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), completedAt, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch status %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) RecomputeBatchCounts(ctx context.Context, batchID string) (*model.BatchCounts, error) {
	var c model.BatchCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*),
		   SUM(CASE WHEN status IN ('enriched', 'qualified', 'exported') THEN 1 ELSE 0 END),
		   SUM(CASE WHEN status IN ('qualified', 'exported') THEN 1 ELSE 0 END),
		   SUM(CASE WHEN status = 'exported' THEN 1 ELSE 0 END),
		   SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END)
		 FROM leads WHERE batch_id = ?`,
		batchID,
	).Scan(&c.Total, &nullableInt{&c.Enriched}, &nullableInt{&c.Qualified}, &nullableInt{&c.Exported}, &nullableInt{&c.Failed})
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: count leads for batch %s", batchID)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE batches SET total = ?, enriched = ?, qualified = ?, exported = ?, failed = ? WHERE id = ?`,
		c.Total, c.Enriched, c.Qualified, c.Exported, c.Failed, batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: recompute batch counts %s", batchID)
	}
	return &c, nil
}

// nullableInt scans a possibly-NULL aggregate into an int, treating NULL as 0.
type nullableInt struct{ dst *int }

func (n *nullableInt) Scan(src any) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = int(v)
	case float64:
		*n.dst = int(v)
	default:
		return eris.Errorf("sqlite: unexpected aggregate type %T", src)
	}
	return nil
}

func (s *SQLiteStore) CreateLeads(ctx context.Context, clientID, batchID string, urls []string) (int, int, error) {
	if len(urls) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := 0
	for _, u := range urls {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO leads (id, client_id, batch_id, status, linkedin_url, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), clientID, batchID, string(model.LeadStatusDiscovered), u, now, now,
		)
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: insert lead")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: rows affected")
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: commit leads")
	}
	return created, len(urls) - created, nil
}

const sqliteLeadColumns = `id, client_id, batch_id, status, linkedin_url, profile_id, profile_data,
	name, headline, company, location, follower_count, current_job_titles, embedding,
	industry, industry_reasoning, company_type, company_reasoning,
	icp_score, match_reasoning, qualified_at, error_message, retry_count,
	scraped_at, created_at, updated_at`

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var profileData, embedding sql.NullString
	var titlesJSON string

	err := row.Scan(&l.ID, &l.ClientID, &l.BatchID, &l.Status, &l.LinkedInURL, &l.ProfileID, &profileData,
		&l.Name, &l.Headline, &l.Company, &l.Location, &l.FollowerCount, &titlesJSON, &embedding,
		&l.Industry, &l.IndustryReasoning, &l.CompanyType, &l.CompanyReasoning,
		&l.ICPScore, &l.MatchReasoning, &l.QualifiedAt, &l.ErrorMessage, &l.RetryCount,
		&l.ScrapedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if profileData.Valid && profileData.String != "" {
		l.ProfileData = json.RawMessage(profileData.String)
	}
	if titlesJSON != "" {
		if err := json.Unmarshal([]byte(titlesJSON), &l.CurrentJobTitles); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job titles")
		}
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &l.Embedding); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
		}
	}
	return &l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := scanSQLiteLead(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.BatchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		query += ` AND icp_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY created_at ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) MarkLeadEnriched(ctx context.Context, id string, upd model.EnrichedUpdate) error {
	titlesJSON, err := json.Marshal(upd.Fields.CurrentJobTitles)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job titles")
	}

	var embeddingJSON any
	if upd.Embedding != nil {
		b, err := json.Marshal(upd.Embedding)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal embedding")
		}
		embeddingJSON = string(b)
	}

	var cls model.Classification
	if upd.Classification != nil {
		cls = *upd.Classification
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
		   status = 'enriched', profile_id = ?, profile_data = ?,
		   name = ?, headline = ?, company = ?, location = ?, follower_count = ?,
		   current_job_titles = ?, embedding = ?,
		   industry = ?, industry_reasoning = ?, company_type = ?, company_reasoning = ?,
		   error_message = '', scraped_at = ?, updated_at = ?
		 WHERE id = ?`,
		upd.ProfileID, string(upd.ProfileData),
		upd.Fields.Name, upd.Fields.Headline, upd.Fields.Company, upd.Fields.Location, upd.Fields.FollowerCount,
		string(titlesJSON), embeddingJSON,
		cls.Industry, cls.IndustryReasoning, cls.CompanyType, cls.CompanyReasoning,
		upd.ScrapedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark lead enriched %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) MarkLeadQualified(ctx context.Context, id string, score int, reasoning string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = 'qualified', icp_score = ?, match_reasoning = ?, qualified_at = ?, updated_at = ?
		 WHERE id = ?`,
		score, reasoning, now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark lead qualified %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) MarkLeadFailed(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = 'failed', error_message = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark lead failed %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) MarkLeadsExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE leads SET status = 'exported', updated_at = ? WHERE id = ?`,
			now, id,
		); err != nil {
			return eris.Wrapf(err, "sqlite: mark lead exported %s", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit exported")
}

func (s *SQLiteStore) ResetQualifiedLeads(ctx context.Context, batchID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = 'enriched', icp_score = NULL, match_reasoning = '', qualified_at = NULL, updated_at = ?
		 WHERE batch_id = ? AND status = 'qualified'`,
		time.Now().UTC(), batchID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reset qualified leads %s", batchID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ResetFailedLeads(ctx context.Context, batchID string, maxRetries int) (int, error) {
	query := `UPDATE leads SET status = 'discovered', error_message = '', updated_at = ?
		 WHERE batch_id = ? AND status = 'failed'`
	args := []any{time.Now().UTC(), batchID}
	if maxRetries > 0 {
		query += ` AND retry_count < ?`
		args = append(args, maxRetries)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reset failed leads %s", batchID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetICP(ctx context.Context, clientID string) (*model.ClientICP, error) {
	var icp model.ClientICP
	var titles, industries, sizes, keywords, excludes string

	err := s.db.QueryRowContext(ctx,
		`SELECT client_id, target_titles, target_industries, company_sizes, target_keywords, exclude_titles, notes, updated_at
		 FROM icps WHERE client_id = ?`,
		clientID,
	).Scan(&icp.ClientID, &titles, &industries, &sizes, &keywords, &excludes, &icp.Notes, &icp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get icp %s", clientID)
	}

	for _, pair := range []struct {
		raw string
		out *[]string
	}{
		{titles, &icp.TargetTitles},
		{industries, &icp.TargetIndustries},
		{sizes, &icp.CompanySizes},
		{keywords, &icp.TargetKeywords},
		{excludes, &icp.ExcludeTitles},
	} {
		if pair.raw != "" {
			if err := json.Unmarshal([]byte(pair.raw), pair.out); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal icp criteria")
			}
		}
	}
	return &icp, nil
}

func (s *SQLiteStore) UpsertICP(ctx context.Context, icp model.ClientICP) error {
	marshal := func(v []string) string {
		if v == nil {
			v = []string{}
		}
		b, _ := json.Marshal(v)
		return string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO icps (client_id, target_titles, target_industries, company_sizes, target_keywords, exclude_titles, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (client_id) DO UPDATE SET
		   target_titles = excluded.target_titles,
		   target_industries = excluded.target_industries,
		   company_sizes = excluded.company_sizes,
		   target_keywords = excluded.target_keywords,
		   exclude_titles = excluded.exclude_titles,
		   notes = excluded.notes,
		   updated_at = excluded.updated_at`,
		icp.ClientID, marshal(icp.TargetTitles), marshal(icp.TargetIndustries), marshal(icp.CompanySizes),
		marshal(icp.TargetKeywords), marshal(icp.ExcludeTitles), icp.Notes, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert icp")
}

func (s *SQLiteStore) GetCachedProfile(ctx context.Context, linkedinURL string, ttl time.Duration) (*model.ProfileCacheEntry, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var entry model.ProfileCacheEntry
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT linkedin_url, profile_id, profile_data, scraped_at FROM profile_cache
		 WHERE linkedin_url = ? AND scraped_at > ?`,
		linkedinURL, cutoff,
	).Scan(&entry.LinkedInURL, &entry.ProfileID, &data, &entry.ScrapedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached profile")
	}
	entry.ProfileData = json.RawMessage(data)
	return &entry, nil
}

func (s *SQLiteStore) PutCachedProfile(ctx context.Context, entry model.ProfileCacheEntry) error {
	scrapedAt := entry.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_cache (linkedin_url, profile_id, profile_data, scraped_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (linkedin_url) DO UPDATE SET
		   profile_id = excluded.profile_id,
		   profile_data = excluded.profile_data,
		   scraped_at = excluded.scraped_at`,
		entry.LinkedInURL, entry.ProfileID, string(entry.ProfileData), scrapedAt,
	)
	return eris.Wrap(err, "sqlite: put cached profile")
}

func (s *SQLiteStore) PruneProfileCache(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_cache WHERE scraped_at <= ?`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune profile cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}
