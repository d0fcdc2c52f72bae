package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

const pgUniqueViolation = "23505"

// Postgres owns the connection pool shared by the Postgres stores.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, pings it and optionally migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	o := pgOptions{
		maxConns:        10,
		minConns:        1,
		maxConnLifetime: 30 * time.Minute,
		migrate:         true,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = o.maxConns
	cfg.MinConns = o.minConns
	cfg.MaxConnLifetime = o.maxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if o.migrate {
		if err := Migrate(ctx, pool, o.log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &Postgres{pool: pool}, nil
}

// Users returns the user store over the pool.
func (p *Postgres) Users() *PostgresUserStore { return &PostgresUserStore{pool: p.pool} }

// Competitions returns the competition store over the pool.
func (p *Postgres) Competitions() *PostgresCompetitionStore {
	return &PostgresCompetitionStore{pool: p.pool}
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// PostgresUserStore keeps users in the users table with JSONB sub-documents.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

const userColumns = `id, display_name, bio, skills, theme, total_wins, achievements, stats, history, last_updated`

func (s *PostgresUserStore) Get(ctx context.Context, userID string) (u model.User, err error) {
	defer func(start time.Time) { observe("user.get", start, ignoreNotFound(err)) }(time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	u, err = scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// MergeWrite upserts only the set patch fields in a single statement.
func (s *PostgresUserStore) MergeWrite(ctx context.Context, userID string, patch model.UserPatch) (err error) {
	defer func(start time.Time) { observe("user.merge", start, err) }(time.Now())

	cols := []string{"id"}
	args := []any{userID}
	casts := map[string]string{}
	add := func(col, cast string, v any) {
		cols = append(cols, col)
		args = append(args, v)
		casts[col] = cast
	}

	if patch.DisplayName != nil {
		add("display_name", "", *patch.DisplayName)
	}
	if patch.Bio != nil {
		add("bio", "", *patch.Bio)
	}
	if patch.Theme != nil {
		add("theme", "", string(*patch.Theme))
	}
	if patch.LastUpdated != nil {
		add("last_updated", "", *patch.LastUpdated)
	}
	if patch.Skills != nil {
		b, err := json.Marshal(nonNil(*patch.Skills))
		if err != nil {
			return fmt.Errorf("encode skills: %w", err)
		}
		add("skills", "::jsonb", string(b))
	}
	if patch.Achievements != nil {
		b, err := json.Marshal(nonNil(*patch.Achievements))
		if err != nil {
			return fmt.Errorf("encode achievements: %w", err)
		}
		add("achievements", "::jsonb", string(b))
	}

	placeholders := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1) + casts[col]
		if i > 0 {
			sets = append(sets, col+" = EXCLUDED."+col)
		}
	}

	query := `INSERT INTO users (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(placeholders, ", ") + `)`
	if len(sets) == 0 {
		query += ` ON CONFLICT (id) DO NOTHING`
	} else {
		query += ` ON CONFLICT (id) DO UPDATE SET ` + strings.Join(sets, ", ")
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("merge user %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresUserStore) RecordJoin(ctx context.Context, userID string) (err error) {
	defer func(start time.Time) { observe("user.join", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, stats) VALUES ($1, '{"competitionsJoined": 1}')
		ON CONFLICT (id) DO UPDATE SET stats = jsonb_set(
			users.stats, '{competitionsJoined}',
			to_jsonb(COALESCE((users.stats->>'competitionsJoined')::int, 0) + 1)
		)`, userID)
	if err != nil {
		return fmt.Errorf("record join for %s: %w", userID, err)
	}
	return nil
}

// RecordWin locks the user row, folds the win in and writes the counters back.
func (s *PostgresUserStore) RecordWin(ctx context.Context, userID string, credit model.WinCredit) (err error) {
	defer func(start time.Time) { observe("user.win", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin win for %s: %w", userID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}

	var (
		u                 = model.User{ID: userID}
		statsRaw, histRaw []byte
	)
	err = tx.QueryRow(ctx, `SELECT total_wins, stats, history FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&u.TotalWins, &statsRaw, &histRaw)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	if err = json.Unmarshal(statsRaw, &u.Stats); err != nil {
		return fmt.Errorf("decode stats of %s: %w", userID, err)
	}
	if err = json.Unmarshal(histRaw, &u.History); err != nil {
		return fmt.Errorf("decode history of %s: %w", userID, err)
	}

	u.ApplyWin(credit)

	statsOut, err := json.Marshal(u.Stats)
	if err != nil {
		return fmt.Errorf("encode stats of %s: %w", userID, err)
	}
	histOut, err := json.Marshal(u.History)
	if err != nil {
		return fmt.Errorf("encode history of %s: %w", userID, err)
	}
	if _, err = tx.Exec(ctx,
		`UPDATE users SET total_wins = $2, stats = $3::jsonb, history = $4::jsonb WHERE id = $1`,
		userID, u.TotalWins, string(statsOut), string(histOut)); err != nil {
		return fmt.Errorf("update win for %s: %w", userID, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit win for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresUserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u                                 model.User
		theme                             string
		skills, achievements, stats, hist []byte
		lastUpdated                       *time.Time
	)
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Bio, &skills, &theme, &u.TotalWins,
		&achievements, &stats, &hist, &lastUpdated); err != nil {
		return model.User{}, err
	}
	u.Theme = model.Theme(theme)
	if lastUpdated != nil {
		u.LastUpdated = lastUpdated.UTC()
	}
	for _, doc := range []struct {
		raw []byte
		dst any
	}{
		{skills, &u.Skills},
		{achievements, &u.Achievements},
		{stats, &u.Stats},
		{hist, &u.History},
	} {
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return model.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
		}
	}
	return u, nil
}

// PostgresCompetitionStore keeps competitions with winners in a TEXT[] column.
type PostgresCompetitionStore struct {
	pool *pgxpool.Pool
}

const competitionColumns = `id, name, description, type, difficulty, created_by, created_at, status, participants, winners`

func (s *PostgresCompetitionStore) Create(ctx context.Context, c model.Competition) (err error) {
	defer func(start time.Time) { observe("competition.create", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `INSERT INTO competitions (`+competitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Name, c.Description, string(c.Type), string(c.Difficulty), c.CreatedBy,
		c.CreatedAt, string(c.Status), c.Participants, nonNil(c.Winners))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("competition %s: %w", c.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create competition %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresCompetitionStore) Get(ctx context.Context, id string) (model.Competition, error) {
	c, err := scanCompetition(s.pool.QueryRow(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Competition{}, fmt.Errorf("get competition %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresCompetitionStore) List(ctx context.Context, filter model.CompetitionFilter) (out []model.Competition, err error) {
	defer func(start time.Time) { observe("competition.list", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+competitionColumns+` FROM competitions
		WHERE ($1 = '' OR type = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id ASC
		LIMIT NULLIF($3::int, 0)`,
		string(filter.Type), string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	return collectCompetitions(rows)
}

// Join only succeeds on open competitions; the status check and increment are one statement.
func (s *PostgresCompetitionStore) Join(ctx context.Context, id string) (model.Competition, error) {
	c, err := scanCompetition(s.pool.QueryRow(ctx, `UPDATE competitions
		SET participants = participants + 1
		WHERE id = $1 AND status = 'open'
		RETURNING `+competitionColumns, id))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Competition{}, fmt.Errorf("join competition %s: %w", id, err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return model.Competition{}, err
	}
	return model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrClosed)
}

func (s *PostgresCompetitionStore) AddWinners(ctx context.Context, id string, winners []string) (added []string, c model.Competition, err error) {
	defer func(start time.Time) { observe("competition.winners", start, ignoreNotFound(err)) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, model.Competition{}, fmt.Errorf("begin winners for %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err = scanCompetition(tx.QueryRow(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, model.Competition{}, fmt.Errorf("lock competition %s: %w", id, err)
	}

	added = newWinners(c.Winners, winners)
	c.Winners = append(c.Winners, added...)
	c.Status = model.StatusClosed
	if _, err = tx.Exec(ctx, `UPDATE competitions SET winners = $2, status = $3 WHERE id = $1`,
		id, c.Winners, string(c.Status)); err != nil {
		return nil, model.Competition{}, fmt.Errorf("update winners for %s: %w", id, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, model.Competition{}, fmt.Errorf("commit winners for %s: %w", id, err)
	}
	return added, c, nil
}

func (s *PostgresCompetitionStore) QueryByWinner(ctx context.Context, userID string) (out []model.Competition, err error) {
	defer func(start time.Time) { observe("competition.by_winner", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE $1 = ANY(winners)`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wins of %s: %w", userID, err)
	}
	return collectCompetitions(rows)
}

func collectCompetitions(rows pgx.Rows) ([]model.Competition, error) {
	defer rows.Close()

	var out []model.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read competitions: %w", err)
	}
	return out, nil
}

func scanCompetition(row pgx.Row) (model.Competition, error) {
	var (
		c                       model.Competition
		typ, difficulty, status string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &typ, &difficulty, &c.CreatedBy,
		&c.CreatedAt, &status, &c.Participants, &c.Winners); err != nil {
		return model.Competition{}, err
	}
	c.Type = model.CompetitionType(typ)
	c.Difficulty = model.Difficulty(difficulty)
	c.Status = model.Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	if c.Winners == nil {
		c.Winners = []string{}
	}
	return c, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
