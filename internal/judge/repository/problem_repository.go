package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"codepulse/internal/common/cache"
	"codepulse/internal/common/db"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/template"
	appErr "codepulse/pkg/errors"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTemplateTTL      = 10 * time.Minute
	defaultTemplateEmptyTTL = time.Minute
	templateKeyPrefix       = "judge:template:"
)

// ProblemRepository reads problem harnesses and stored test cases.
type ProblemRepository interface {
	template.Source
	ListSampleCases(ctx context.Context, problemID int64) ([]result.TestCase, error)
	ListAllCases(ctx context.Context, problemID int64) ([]result.TestCase, error)
}

// SQLProblemRepository reads from problem_languages and test_cases.
// Templates are cached when a cache is configured.
type SQLProblemRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
	group    singleflight.Group
	local    *cache.LRU[string]
}

type caseRow struct {
	ID         int64  `db:"id"`
	Input      string `db:"input"`
	Output     string `db:"output"`
	Visibility string `db:"visibility"`
}

// NewProblemRepository creates a repository with default cache TTLs.
func NewProblemRepository(database db.Database, cacheClient cache.Cache) *SQLProblemRepository {
	return NewProblemRepositoryWithTTL(database, cacheClient, defaultTemplateTTL, defaultTemplateEmptyTTL)
}

func NewProblemRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *SQLProblemRepository {
	if ttl <= 0 {
		ttl = defaultTemplateTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultTemplateEmptyTTL
	}
	return &SQLProblemRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

// WithLocalCache keeps up to size templates in process for ttl in front of
// the shared cache.
func (r *SQLProblemRepository) WithLocalCache(size int, ttl time.Duration) *SQLProblemRepository {
	if size > 0 {
		r.local = cache.NewLRU[string](size, ttl)
	}
	return r
}

// GetTemplate returns the harness for a problem and language, or "" when the
// problem has none.
func (r *SQLProblemRepository) GetTemplate(ctx context.Context, problemID int64, lang language.Language) (string, error) {
	if problemID <= 0 {
		return "", appErr.ValidationError("problem_id", "required")
	}
	key := templateKey(problemID, lang)
	if r.local != nil {
		if tpl, ok := r.local.Get(key); ok {
			return tpl, nil
		}
	}
	tpl, err := r.loadTemplate(ctx, key, problemID, lang)
	if err != nil {
		return "", err
	}
	if r.local != nil {
		r.local.Set(key, tpl)
	}
	return tpl, nil
}

func (r *SQLProblemRepository) loadTemplate(ctx context.Context, key string, problemID int64, lang language.Language) (string, error) {
	if r.cache == nil {
		return r.getTemplateFromDB(ctx, problemID, lang)
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return cache.GetWithCached[string](
			ctx,
			r.cache,
			key,
			r.ttl,
			cache.JitterTTL(r.emptyTTL),
			func(tpl string) bool { return tpl == "" },
			func(tpl string) string { return tpl },
			func(data string) (string, error) { return data, nil },
			func(ctx context.Context) (string, error) {
				return r.getTemplateFromDB(ctx, problemID, lang)
			},
		)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ListSampleCases returns the visible cases in creation order.
func (r *SQLProblemRepository) ListSampleCases(ctx context.Context, problemID int64) ([]result.TestCase, error) {
	query := `
		SELECT id, input, output, visibility
		FROM test_cases
		WHERE problem_id = ? AND visibility = 'SAMPLE'
		ORDER BY created_at`
	return r.listCases(ctx, query, problemID)
}

// ListAllCases returns sample cases first and hidden ones after, each group in
// creation order.
func (r *SQLProblemRepository) ListAllCases(ctx context.Context, problemID int64) ([]result.TestCase, error) {
	query := `
		SELECT id, input, output, visibility
		FROM test_cases
		WHERE problem_id = ?
		ORDER BY visibility DESC, created_at`
	return r.listCases(ctx, query, problemID)
}

func (r *SQLProblemRepository) getTemplateFromDB(ctx context.Context, problemID int64, lang language.Language) (string, error) {
	spec := lang.Spec()
	query := `
		SELECT test_runner_template
		FROM problem_languages
		WHERE problem_id = ? AND LOWER(language) IN (?, ?)
		LIMIT 1`
	var tpl *string
	err := r.db.GetContext(ctx, &tpl, r.db.Rebind(query), problemID, spec.ID, strings.ToLower(spec.StorageID))
	if err != nil {
		if db.IsNoRows(err) {
			return "", nil
		}
		return "", appErr.Wrapf(err, appErr.TemplateLoadFailed, "load template failed")
	}
	if tpl == nil {
		return "", nil
	}
	return *tpl, nil
}

func (r *SQLProblemRepository) listCases(ctx context.Context, query string, problemID int64) ([]result.TestCase, error) {
	if problemID <= 0 {
		return nil, appErr.ValidationError("problem_id", "required")
	}
	var rows []caseRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), problemID); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list test cases failed")
	}
	cases := make([]result.TestCase, 0, len(rows))
	for _, row := range rows {
		cases = append(cases, result.TestCase{
			ID:         row.ID,
			Input:      row.Input,
			Expected:   row.Output,
			Visibility: result.Visibility(strings.ToUpper(row.Visibility)),
		})
	}
	return cases, nil
}

func templateKey(problemID int64, lang language.Language) string {
	return templateKeyPrefix + strconv.FormatInt(problemID, 10) + ":" + lang.String()
}
