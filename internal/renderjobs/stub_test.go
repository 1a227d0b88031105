package renderjobs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"quotepix/internal/domain"
	"quotepix/internal/infra"
	"quotepix/internal/infra/credentials"
	"quotepix/internal/keypool"
	"quotepix/internal/notify"
	"quotepix/internal/providers/image"
	"quotepix/internal/sqlinline"
	"quotepix/internal/storage"
)

const (
	testTenantID   = "11111111-1111-4111-8111-111111111111"
	testQuoteID    = "22222222-2222-4222-8222-222222222222"
	testJobID      = "33333333-3333-4333-8333-333333333333"
	testCredSecret = "test-credential-secret"
)

type sqlCall struct {
	query string
	args  []any
}

// stubDB implements infra.SQLExecutor with scripted responses and records
// every statement for assertions. Safe for concurrent use so tests can
// exercise the gateway's kick goroutine.
type stubDB struct {
	mu         sync.Mutex
	onQueryRow func(query string, args []any) pgx.Row
	onQuery    func(query string, args []any) (pgx.Rows, error)
	onExec     func(query string, args []any) (pgconn.CommandTag, error)

	rowCalls  []sqlCall
	execCalls []sqlCall
}

var _ infra.SQLExecutor = (*stubDB)(nil)

func (db *stubDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execCalls = append(db.execCalls, sqlCall{query: query, args: args})
	if db.onExec != nil {
		return db.onExec(query, args)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (db *stubDB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rowCalls = append(db.rowCalls, sqlCall{query: query, args: args})
	if db.onQueryRow != nil {
		return db.onQueryRow(query, args)
	}
	return stubRow{err: pgx.ErrNoRows}
}

func (db *stubDB) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.onQuery != nil {
		return db.onQuery(query, args)
	}
	return nil, errors.New("unexpected Query")
}

func (db *stubDB) execsFor(query string) []sqlCall {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []sqlCall
	for _, c := range db.execCalls {
		if c.query == query {
			out = append(out, c)
		}
	}
	return out
}

func (db *stubDB) rowsFor(query string) []sqlCall {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []sqlCall
	for _, c := range db.rowCalls {
		if c.query == query {
			out = append(out, c)
		}
	}
	return out
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.values)
}

type stubRows struct {
	rows [][]any
	idx  int
}

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *stubRows) Scan(dest ...any) error                      { return scanInto(dest, r.rows[r.idx-1]) }
func (r *stubRows) Close()                                      {}
func (r *stubRows) Err() error                                  { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag               { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                      { return nil, errors.New("not implemented") }
func (r *stubRows) RawValues() [][]byte                         { return nil }
func (r *stubRows) Conn() *pgx.Conn                             { return nil }

func scanInto(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if v == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().ConvertibleTo(elem.Type()) {
			return fmt.Errorf("scan: cannot store %T into %s", v, elem.Type())
		}
		elem.Set(val.Convert(elem.Type()))
	}
	return nil
}

func tenantRowValues(t *domain.Tenant) []any {
	return []any{
		t.ID, t.Slug, t.PlanTier, t.GraceCredits, t.GraceUsed, t.APIKeyEnc,
		t.Industry, t.BasePrompt, t.StyleKey, t.StyleNotes, t.PricingEnabled,
		t.PricingMode, t.BlockedTopics, t.DailyRenderCap,
	}
}

func quoteRowValues(q *domain.Quote) []any {
	return []any{
		q.ID, q.TenantID, q.ServiceType, q.Summary, q.CustomerNotes,
		q.CustomerName, q.CustomerEmail, q.PhotoURLs, q.RenderOptIn,
		q.RenderStatus, q.RenderImageURL, q.RenderError, q.RenderPrompt,
	}
}

func claimedRowValues(j domain.RenderJob) []any {
	return []any{
		j.ID, j.TenantID, j.QuoteID, string(j.Status), j.Prompt, j.ImageURL,
		j.ErrorCode, j.CreatedAt, j.StartedAt, j.CompletedAt,
	}
}

// world is a scripted single-tenant database state shared by the worker and
// gateway tests.
type world struct {
	db     *stubDB
	tenant *domain.Tenant
	quotes map[string]*domain.Quote
	jobs   []domain.RenderJob

	renderedToday   int
	platformKey     string
	activeJobID     string
	activeJobStatus string
	tenantMissing   bool
}

func (w *world) quote() *domain.Quote { return w.quotes[testQuoteID] }

func newWorld() *world {
	w := &world{
		tenant: &domain.Tenant{
			ID:           testTenantID,
			Slug:         "acme-landscaping",
			PlanTier:     "tier1",
			GraceCredits: 5,
			Industry:     "landscaping",
			StyleKey:     "photoreal",
		},
		quotes: map[string]*domain.Quote{
			testQuoteID: {
				ID:          testQuoteID,
				TenantID:    testTenantID,
				ServiceType: "lawn renovation",
				Summary:     "front yard, approx 200 sqm",
				PhotoURLs:   []string{"https://cdn.example.com/before.jpg"},
				RenderOptIn: true,
			},
		},
		jobs: []domain.RenderJob{{
			ID:        testJobID,
			TenantID:  testTenantID,
			QuoteID:   testQuoteID,
			Status:    domain.JobStatusRunning,
			CreatedAt: time.Now(),
		}},
	}

	db := &stubDB{}
	db.onQueryRow = func(query string, args []any) pgx.Row {
		switch query {
		case sqlinline.QSelectTenantByID, sqlinline.QSelectTenantByRef:
			if w.tenantMissing {
				return stubRow{err: pgx.ErrNoRows}
			}
			return stubRow{values: tenantRowValues(w.tenant)}
		case sqlinline.QSelectQuoteForRender:
			id, _ := args[0].(string)
			if q, ok := w.quotes[id]; ok {
				return stubRow{values: quoteRowValues(q)}
			}
			return stubRow{err: pgx.ErrNoRows}
		case sqlinline.QCountRenderedSince:
			return stubRow{values: []any{w.renderedToday}}
		case sqlinline.QSelectIntegrationToken:
			if w.platformKey == "" {
				return stubRow{err: pgx.ErrNoRows}
			}
			return stubRow{values: []any{w.platformKey}}
		case sqlinline.QSelectTenantCreditState:
			return stubRow{values: []any{w.tenant.PlanTier, w.tenant.GraceCredits, w.tenant.GraceUsed}}
		case sqlinline.QConsumeGraceCredit:
			if w.tenant.GraceUsed >= w.tenant.GraceCredits {
				return stubRow{err: pgx.ErrNoRows}
			}
			w.tenant.GraceUsed++
			return stubRow{values: []any{w.tenant.GraceUsed, w.tenant.GraceCredits}}
		case sqlinline.QFindActiveJobForQuote:
			if w.activeJobID != "" {
				return stubRow{values: []any{w.activeJobID, w.activeJobStatus}}
			}
			return stubRow{err: pgx.ErrNoRows}
		case sqlinline.QEnqueueRenderJob:
			return stubRow{values: []any{testJobID}}
		}
		return stubRow{err: fmt.Errorf("unexpected QueryRow: %.40s", query)}
	}
	db.onQuery = func(query string, _ []any) (pgx.Rows, error) {
		if query != sqlinline.QClaimRenderJobs {
			return nil, fmt.Errorf("unexpected Query: %.40s", query)
		}
		rows := make([][]any, 0, len(w.jobs))
		for _, j := range w.jobs {
			rows = append(rows, claimedRowValues(j))
		}
		return &stubRows{rows: rows}, nil
	}
	w.db = db
	return w
}

type stubGenerator struct {
	asset    *image.Asset
	err      error
	requests []image.GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, req image.GenerateRequest) (*image.Asset, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.asset, nil
}

type stubObjectStore struct {
	baseURL string
	err     error
	keys    []string
}

func (s *stubObjectStore) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return "", s.err
	}
	return s.baseURL + "/" + key, nil
}

type stubNotifier struct {
	events []notify.RenderCompleted
	err    error
}

func (n *stubNotifier) RenderCompleted(_ context.Context, event notify.RenderCompleted) error {
	n.events = append(n.events, event)
	return n.err
}

// slowGenerator waits out its delay like a real network call, honoring
// context cancellation the way an http.Client would.
type slowGenerator struct {
	delay time.Duration
	asset *image.Asset
}

func (g *slowGenerator) Generate(ctx context.Context, _ image.GenerateRequest) (*image.Asset, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.delay):
		return g.asset, nil
	}
}

// signalNotifier closes its channel on the first delivery, letting tests wait
// for a job kicked off on a background goroutine to finish.
type signalNotifier struct {
	done chan struct{}
	once sync.Once
}

func newSignalNotifier() *signalNotifier {
	return &signalNotifier{done: make(chan struct{})}
}

func (n *signalNotifier) RenderCompleted(context.Context, notify.RenderCompleted) error {
	n.once.Do(func() { close(n.done) })
	return nil
}

func newTestWorker(w *world, gen image.Generator, objects storage.ObjectStore, notifier notify.Notifier) *Worker {
	logger := zerolog.Nop()
	resolver := keypool.NewResolver(
		w.db, credentials.NewStore(w.db), testCredSecret, "",
		[]string{"tier1", "tier2"}, logger,
	)
	return NewWorker(WorkerOptions{
		Store:            NewStore(w.db, logger),
		Resolver:         resolver,
		Generator:        gen,
		Objects:          objects,
		Notifier:         notifier,
		Logger:           logger,
		PlatformDailyCap: 25,
		SafetyPreamble:   "Keep the output family friendly.",
	})
}

func encryptedTenantKey(secret, key string) string {
	enc, err := credentials.EncryptKey(secret, key)
	if err != nil {
		panic(err)
	}
	return enc
}
