package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// inside runtime images that do not carry internal/db/schema.sql.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("[db] connected to PostgreSQL for evidence engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("[db] evidence engine schema initialized")
	return nil
}

// GetPool exposes the connection pool for the shadow runner and other subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// SaveEvaluationRun persists one posterior evaluation together with its
// per-subset gap scores in a single transaction.
func (s *PostgresStore) SaveEvaluationRun(ctx context.Context, run models.EvaluationRun, gaps []models.GapScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertRunSQL := `
		INSERT INTO evaluation_runs (run_id, source, mode, batch_size, lambda_wf, posterior_sum, max_posterior, arg_max)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE
		SET posterior_sum = EXCLUDED.posterior_sum, max_posterior = EXCLUDED.max_posterior, arg_max = EXCLUDED.arg_max;
	`
	_, err = tx.Exec(ctx, insertRunSQL, run.RunID, run.Source, run.Mode,
		run.BatchSize, run.LambdaWF, run.PosteriorSum, run.MaxPosterior, run.ArgMax)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation run: %v", err)
	}

	if len(gaps) > 0 {
		insertGapSQL := `
			INSERT INTO gap_scores (run_id, subset_index, entropy, kl_divergence, total_score)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id, subset_index) DO UPDATE
			SET entropy = EXCLUDED.entropy, kl_divergence = EXCLUDED.kl_divergence, total_score = EXCLUDED.total_score;
		`
		for i, g := range gaps {
			if _, err := tx.Exec(ctx, insertGapSQL, run.RunID, i, g.Entropy, g.KLDivergence, g.TotalScore); err != nil {
				return fmt.Errorf("failed to insert gap score: %v", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// SaveQualityAssessments persists the scored records of one run.
func (s *PostgresStore) SaveQualityAssessments(ctx context.Context, runID string, results []models.ScoringResult) error {
	sql := `
		INSERT INTO quality_assessments (run_id, record_index, base_score, final_score, entropy, quality_class)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, record_index) DO UPDATE
		SET base_score = EXCLUDED.base_score, final_score = EXCLUDED.final_score,
		    entropy = EXCLUDED.entropy, quality_class = EXCLUDED.quality_class;
	`
	for i, r := range results {
		if _, err := s.pool.Exec(ctx, sql, runID, i, r.BaseScore, r.RegularizedScore, r.Entropy, r.Class.String()); err != nil {
			return err
		}
	}
	return nil
}

// SaveMaterialRanks persists per-material rank scores for one run.
func (s *PostgresStore) SaveMaterialRanks(ctx context.Context, runID string, ranks []float64) error {
	sql := `
		INSERT INTO material_ranks (run_id, material_index, rank_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, material_index) DO UPDATE SET rank_score = EXCLUDED.rank_score;
	`
	for i, r := range ranks {
		if _, err := s.pool.Exec(ctx, sql, runID, i, r); err != nil {
			return err
		}
	}
	return nil
}

// RunSummary is the paginated listing row for recent evaluation runs.
type RunSummary struct {
	RunID        string  `json:"runId"`
	Source       string  `json:"source"`
	Mode         string  `json:"mode"`
	BatchSize    int     `json:"batchSize"`
	MaxPosterior float64 `json:"maxPosterior"`
	ArgMax       int     `json:"argMax"`
}

// ListRuns pages through evaluation runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, page, limit int) ([]RunSummary, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evaluation_runs`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, source, mode, batch_size, max_posterior, arg_max
		FROM evaluation_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Source, &r.Mode, &r.BatchSize, &r.MaxPosterior, &r.ArgMax); err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return runs, totalCount, nil
}

// SaveCampaign upserts campaign metadata for durable screening storage.
func (s *PostgresStore) SaveCampaign(ctx context.Context, campaignID, name, description string, targetZT float64) error {
	sql := `
		INSERT INTO campaigns (campaign_id, name, description, target_zt, status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (campaign_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			target_zt = EXCLUDED.target_zt,
			status = 'active',
			updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, campaignID, name, description, targetZT)
	return err
}

// SaveCampaignMaterial upserts a campaign-tagged material composition. The
// upsert rides the (campaign_id, composition) unique constraint, so both
// first-time tags and re-tags count as one affected row; zero rows can only
// mean the campaign itself is missing.
func (s *PostgresStore) SaveCampaignMaterial(ctx context.Context, campaignID, composition, label, role, notes, taggedBy string) error {
	sql := `
		INSERT INTO campaign_materials
			(campaign_id, composition, label, role, notes, tagged_by, tagged_at)
		SELECT c.id, $2, $3, $4, $5, $6, NOW()
		FROM campaigns c
		WHERE c.campaign_id = $1
		ON CONFLICT (campaign_id, composition) DO UPDATE SET
			label = EXCLUDED.label,
			role = EXCLUDED.role,
			notes = EXCLUDED.notes,
			tagged_by = EXCLUDED.tagged_by,
			tagged_at = NOW();
	`
	result, err := s.pool.Exec(ctx, sql, campaignID, composition, label, role, notes, taggedBy)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("campaign not found: %s", campaignID)
	}
	return nil
}

// CampaignSeed is one active campaign material loaded at process boot to
// warm-start the scanner's composition watchlist.
type CampaignSeed struct {
	CampaignID  string
	Name        string
	Composition string
	Role        string
	Label       string
}

// LoadActiveCampaignSeeds loads the tagged compositions of every active
// campaign.
func (s *PostgresStore) LoadActiveCampaignSeeds(ctx context.Context) ([]CampaignSeed, error) {
	sql := `
		SELECT c.campaign_id, c.name, m.composition, COALESCE(m.role, ''), COALESCE(m.label, '')
		FROM campaigns c
		JOIN campaign_materials m ON m.campaign_id = c.id
		WHERE c.status = 'active';
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seeds := make([]CampaignSeed, 0)
	for rows.Next() {
		var seed CampaignSeed
		if err := rows.Scan(&seed.CampaignID, &seed.Name, &seed.Composition, &seed.Role, &seed.Label); err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return seeds, nil
}

// SaveShadowResult persists one deterministic-vs-parallel drift audit row.
func (s *PostgresStore) SaveShadowResult(ctx context.Context, runID string, batchSize int,
	maxAbsDrift, rmsDrift, tolerance float64, withinBound bool, randIndex, varInformation float64) error {

	sql := `
		INSERT INTO shadow_results
			(run_id, batch_size, max_abs_drift, rms_drift, tolerance, within_bound, rand_index, var_information)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, sql, runID, batchSize, maxAbsDrift, rmsDrift, tolerance, withinBound, randIndex, varInformation)
	return err
}
