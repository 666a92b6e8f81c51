package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-cli/internal/db"
	"github.com/sells-group/icp-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_lead":           `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`,
	"mark_lead_failed":   `UPDATE leads SET status = 'failed', error_message = $1, retry_count = retry_count + 1, updated_at = $2 WHERE id = $3`,
	"get_cached_profile": `SELECT linkedin_url, profile_id, profile_data, scraped_at FROM profile_cache WHERE linkedin_url = $1 AND scraped_at > $2`,
	"put_cached_profile": `INSERT INTO profile_cache (linkedin_url, profile_id, profile_data, scraped_at) VALUES ($1, $2, $3, $4) ON CONFLICT (linkedin_url) DO UPDATE SET profile_id = $2, profile_data = $3, scraped_at = $4`,
	"get_icp":            `SELECT client_id, target_titles, target_industries, company_sizes, target_keywords, exclude_titles, notes, updated_at FROM icps WHERE client_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS icps (
	client_id         TEXT PRIMARY KEY,
	target_titles     JSONB NOT NULL DEFAULT '[]',
	target_industries JSONB NOT NULL DEFAULT '[]',
	company_sizes     JSONB NOT NULL DEFAULT '[]',
	target_keywords   JSONB NOT NULL DEFAULT '[]',
	exclude_titles    JSONB NOT NULL DEFAULT '[]',
	notes             TEXT NOT NULL DEFAULT '',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id    TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	total        INTEGER NOT NULL DEFAULT 0,
	enriched     INTEGER NOT NULL DEFAULT 0,
	qualified    INTEGER NOT NULL DEFAULT 0,
	exported     INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id          TEXT NOT NULL,
	batch_id           TEXT NOT NULL REFERENCES batches(id),
	status             TEXT NOT NULL DEFAULT 'discovered',
	linkedin_url       TEXT NOT NULL,
	profile_id         TEXT NOT NULL DEFAULT '',
	profile_data       JSONB,
	name               TEXT NOT NULL DEFAULT '',
	headline           TEXT NOT NULL DEFAULT '',
	company            TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	follower_count     INTEGER NOT NULL DEFAULT 0,
	current_job_titles JSONB NOT NULL DEFAULT '[]',
	embedding          JSONB,
	industry           TEXT NOT NULL DEFAULT '',
	industry_reasoning TEXT NOT NULL DEFAULT '',
	company_type       TEXT NOT NULL DEFAULT '',
	company_reasoning  TEXT NOT NULL DEFAULT '',
	icp_score          INTEGER,
	match_reasoning    TEXT NOT NULL DEFAULT '',
	qualified_at       TIMESTAMPTZ,
	error_message      TEXT NOT NULL DEFAULT '',
	retry_count        INTEGER NOT NULL DEFAULT 0,
	scraped_at         TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (client_id, linkedin_url)
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_id ON leads(batch_id);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_batch_status ON leads(batch_id, status);
CREATE INDEX IF NOT EXISTS idx_batches_client_id ON batches(client_id);

CREATE TABLE IF NOT EXISTS profile_cache (
	linkedin_url TEXT PRIMARY KEY,
	profile_id   TEXT NOT NULL DEFAULT '',
	profile_data JSONB NOT NULL,
	scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_profile_cache_scraped_at ON profile_cache(scraped_at);
`

const leadColumns = `id, client_id, batch_id, status, linkedin_url, profile_id, profile_data,
	name, headline, company, location, follower_count, current_job_titles, embedding,
	industry, industry_reasoning, company_type, company_reasoning,
	icp_score, match_reasoning, qualified_at, error_message, retry_count,
	scraped_at, created_at, updated_at`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, clientID, name string) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO batches (id, client_id, name, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, clientID, name, string(model.BatchStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch")
	}

	return &model.Batch{
		ID:        id,
		ClientID:  clientID,
		Name:      name,
		Status:    model.BatchStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	var b model.Batch
	err := s.pool.QueryRow(ctx,
		`SELECT id, client_id, name, status, total, enriched, qualified, exported, failed, created_at, completed_at
		 FROM batches WHERE id = $1`,
		batchID,
	).Scan(&b.ID, &b.ClientID, &b.Name, &b.Status,
		&b.Counts.Total, &b.Counts.Enriched, &b.Counts.Qualified, &b.Counts.Exported, &b.Counts.Failed,
		&b.CreatedAt, &b.CompletedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}
	return &b, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, clientID string) ([]model.Batch, error) {
	query := `SELECT id, client_id, name, status, total, enriched, qualified, exported, failed, created_at, completed_at
	          FROM batches WHERE true`
	args := []any{}
	if clientID != "" {
		query += ` AND client_id = $1`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var b model.Batch
		if err := rows.Scan(&b.ID, &b.ClientID, &b.Name, &b.Status,
			&b.Counts.Total, &b.Counts.Enriched, &b.Counts.Qualified, &b.Counts.Exported, &b.Counts.Failed,
			&b.CreatedAt, &b.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func (s *PostgresStore) UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error {
	var completedAt *time.Time
	if status == model.BatchStatusQualified || status == model.BatchStatusExported {
		now := time.Now().UTC()
		completedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET status = $1, completed_at = COALESCE($2, completed_at) WHERE id = $3`,
		string(status), completedAt, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch status %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) RecomputeBatchCounts(ctx context.Context, batchID string) (*model.BatchCounts, error) {
	var c model.BatchCounts
	err := s.pool.QueryRow(ctx,
		`UPDATE batches SET
		   total     = sub.total,
		   enriched  = sub.enriched,
		   qualified = sub.qualified,
		   exported  = sub.exported,
		   failed    = sub.failed
		 FROM (
		   SELECT
		     COUNT(*) AS total,
		     COUNT(*) FILTER (WHERE status IN ('enriched', 'qualified', 'exported')) AS enriched,
		     COUNT(*) FILTER (WHERE status IN ('qualified', 'exported')) AS qualified,
		     COUNT(*) FILTER (WHERE status = 'exported') AS exported,
		     COUNT(*) FILTER (WHERE status = 'failed') AS failed
		   FROM leads WHERE batch_id = $1
		 ) sub
		 WHERE batches.id = $1
		 RETURNING sub.total, sub.enriched, sub.qualified, sub.exported, sub.failed`,
		batchID,
	).Scan(&c.Total, &c.Enriched, &c.Qualified, &c.Exported, &c.Failed)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: recompute batch counts %s", batchID)
	}
	return &c, nil
}

func (s *PostgresStore) CreateLeads(ctx context.Context, clientID, batchID string, urls []string) (int, int, error) {
	if len(urls) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, []any{
			uuid.New().String(), clientID, batchID, string(model.LeadStatusDiscovered), u, now, now,
		})
	}

	inserted, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      []string{"id", "client_id", "batch_id", "status", "linkedin_url", "created_at", "updated_at"},
		ConflictKeys: []string{"client_id", "linkedin_url"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: create leads")
	}

	return int(inserted), len(urls) - int(inserted), nil
}

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var titlesJSON, embeddingJSON []byte

	err := row.Scan(&l.ID, &l.ClientID, &l.BatchID, &l.Status, &l.LinkedInURL, &l.ProfileID, &l.ProfileData,
		&l.Name, &l.Headline, &l.Company, &l.Location, &l.FollowerCount, &titlesJSON, &embeddingJSON,
		&l.Industry, &l.IndustryReasoning, &l.CompanyType, &l.CompanyReasoning,
		&l.ICPScore, &l.MatchReasoning, &l.QualifiedAt, &l.ErrorMessage, &l.RetryCount,
		&l.ScrapedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(titlesJSON) > 0 {
		if err := json.Unmarshal(titlesJSON, &l.CurrentJobTitles); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job titles")
		}
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &l.Embedding); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal embedding")
		}
	}
	return &l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ClientID != "" {
		query += fmt.Sprintf(` AND client_id = $%d`, argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}
	if filter.BatchID != "" {
		query += fmt.Sprintf(` AND batch_id = $%d`, argIdx)
		args = append(args, filter.BatchID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND icp_score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY created_at ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) MarkLeadEnriched(ctx context.Context, id string, upd model.EnrichedUpdate) error {
	titlesJSON, err := json.Marshal(upd.Fields.CurrentJobTitles)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job titles")
	}

	var embeddingJSON []byte
	if upd.Embedding != nil {
		embeddingJSON, err = json.Marshal(upd.Embedding)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal embedding")
		}
	}

	var cls model.Classification
	if upd.Classification != nil {
		cls = *upd.Classification
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
		   status = 'enriched', profile_id = $1, profile_data = $2,
		   name = $3, headline = $4, company = $5, location = $6, follower_count = $7,
		   current_job_titles = $8, embedding = $9,
		   industry = $10, industry_reasoning = $11, company_type = $12, company_reasoning = $13,
		   error_message = '', scraped_at = $14, updated_at = $15
		 WHERE id = $16`,
		upd.ProfileID, []byte(upd.ProfileData),
		upd.Fields.Name, upd.Fields.Headline, upd.Fields.Company, upd.Fields.Location, upd.Fields.FollowerCount,
		titlesJSON, embeddingJSON,
		cls.Industry, cls.IndustryReasoning, cls.CompanyType, cls.CompanyReasoning,
		upd.ScrapedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark lead enriched %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkLeadQualified(ctx context.Context, id string, score int, reasoning string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = 'qualified', icp_score = $1, match_reasoning = $2, qualified_at = $3, updated_at = $3
		 WHERE id = $4`,
		score, reasoning, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark lead qualified %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkLeadFailed(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = 'failed', error_message = $1, retry_count = retry_count + 1, updated_at = $2 WHERE id = $3`,
		errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark lead failed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkLeadsExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = 'exported', updated_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark leads exported")
}

func (s *PostgresStore) ResetQualifiedLeads(ctx context.Context, batchID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = 'enriched', icp_score = NULL, match_reasoning = '', qualified_at = NULL, updated_at = $1
		 WHERE batch_id = $2 AND status = 'qualified'`,
		time.Now().UTC(), batchID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: reset qualified leads %s", batchID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ResetFailedLeads(ctx context.Context, batchID string, maxRetries int) (int, error) {
	query := `UPDATE leads SET status = 'discovered', error_message = '', updated_at = $1
		 WHERE batch_id = $2 AND status = 'failed'`
	args := []any{time.Now().UTC(), batchID}
	if maxRetries > 0 {
		query += ` AND retry_count < $3`
		args = append(args, maxRetries)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: reset failed leads %s", batchID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetICP(ctx context.Context, clientID string) (*model.ClientICP, error) {
	var icp model.ClientICP
	var titles, industries, sizes, keywords, excludes []byte

	err := s.pool.QueryRow(ctx,
		`SELECT client_id, target_titles, target_industries, company_sizes, target_keywords, exclude_titles, notes, updated_at
		 FROM icps WHERE client_id = $1`,
		clientID,
	).Scan(&icp.ClientID, &titles, &industries, &sizes, &keywords, &excludes, &icp.Notes, &icp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get icp %s", clientID)
	}

	for _, pair := range []struct {
		raw []byte
		out *[]string
	}{
		{titles, &icp.TargetTitles},
		{industries, &icp.TargetIndustries},
		{sizes, &icp.CompanySizes},
		{keywords, &icp.TargetKeywords},
		{excludes, &icp.ExcludeTitles},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.out); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal icp criteria")
			}
		}
	}
	return &icp, nil
}

func (s *PostgresStore) UpsertICP(ctx context.Context, icp model.ClientICP) error {
	marshal := func(v []string) []byte {
		if v == nil {
			v = []string{}
		}
		b, _ := json.Marshal(v)
		return b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO icps (client_id, target_titles, target_industries, company_sizes, target_keywords, exclude_titles, notes, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (client_id) DO UPDATE SET
		   target_titles = $2, target_industries = $3, company_sizes = $4,
		   target_keywords = $5, exclude_titles = $6, notes = $7, updated_at = $8`,
		icp.ClientID, marshal(icp.TargetTitles), marshal(icp.TargetIndustries), marshal(icp.CompanySizes),
		marshal(icp.TargetKeywords), marshal(icp.ExcludeTitles), icp.Notes, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: upsert icp")
}

func (s *PostgresStore) GetCachedProfile(ctx context.Context, linkedinURL string, ttl time.Duration) (*model.ProfileCacheEntry, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var entry model.ProfileCacheEntry
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT linkedin_url, profile_id, profile_data, scraped_at FROM profile_cache
		 WHERE linkedin_url = $1 AND scraped_at > $2`,
		linkedinURL, cutoff,
	).Scan(&entry.LinkedInURL, &entry.ProfileID, &data, &entry.ScrapedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached profile")
	}
	entry.ProfileData = data
	return &entry, nil
}

func (s *PostgresStore) PutCachedProfile(ctx context.Context, entry model.ProfileCacheEntry) error {
	scrapedAt := entry.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profile_cache (linkedin_url, profile_id, profile_data, scraped_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (linkedin_url) DO UPDATE SET profile_id = $2, profile_data = $3, scraped_at = $4`,
		entry.LinkedInURL, entry.ProfileID, []byte(entry.ProfileData), scrapedAt,
	)
	return eris.Wrap(err, "postgres: put cached profile")
}

func (s *PostgresStore) PruneProfileCache(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM profile_cache WHERE scraped_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune profile cache")
	}
	return int(tag.RowsAffected()), nil
}
