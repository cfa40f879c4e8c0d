// AngelaMos | 2026
// dispatch_test.go

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fullContent = "<p>FULL-ISSUE-BODY with the actual portfolio moves</p>"

type fakeSource map[string]*article.Article

func (f fakeSource) GetByID(_ context.Context, id string) (*article.Article, error) {
	a, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("get article: %w", core.ErrNotFound)
	}
	return a, nil
}

type fakeStore struct {
	mu        sync.Mutex
	paid      []Recipient
	free      []Recipient
	contacts  map[string]*Contact
	marked    map[string]string
	paidTiers [][]tier.Tier
}

func newFakeStore() *fakeStore {
	return &fakeStore{contacts: map[string]*Contact{}, marked: map[string]string{}}
}

func (f *fakeStore) GetContact(_ context.Context, id string) (*Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return nil, fmt.Errorf("get subscriber: %w", core.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) MarkWelcomeSent(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked[id] = hash
	return nil
}

func (f *fakeStore) PaidRecipients(
	_ context.Context,
	tiers []tier.Tier,
	afterID string,
	limit int,
) ([]Recipient, error) {
	f.mu.Lock()
	f.paidTiers = append(f.paidTiers, tiers)
	f.mu.Unlock()

	allowed := map[tier.Tier]bool{}
	for _, t := range tiers {
		allowed[t] = true
	}
	var out []Recipient
	for _, r := range f.paid {
		if allowed[r.Tier] && r.ID > afterID && len(out) < limit {
			r.Audience = AudiencePaid
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) FreeRecipients(_ context.Context, afterID string, limit int) ([]Recipient, error) {
	var out []Recipient
	for _, r := range f.free {
		if r.ID > afterID && len(out) < limit {
			r.Tier = tier.Free
			r.Audience = AudienceFree
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	fail map[string]error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if err, ok := s.fail[msg.To]; ok {
		return err
	}
	return nil
}

func (s *recordingSender) to() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.To
	}
	return out
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("newsletter %s: %w", key, ErrInProgress)
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func issue(min tier.Tier) *article.Article {
	return &article.Article{
		ID:              "nl-1",
		Slug:            "rate-cuts-q3",
		Title:           "Rate Cuts in Q3",
		Summary:         "What the next cut means for bonds.",
		Content:         fullContent,
		Author:          "Research Desk",
		MinTier:         min,
		ReadTimeMinutes: 6,
	}
}

type fixture struct {
	store  *fakeStore
	sender *recordingSender
	locker *memLocker
	svc    *Service
}

func newFixture(a *article.Article, pageSize int) *fixture {
	f := &fixture{
		store:  newFakeStore(),
		sender: &recordingSender{fail: map[string]error{}},
		locker: newMemLocker(),
	}
	src := fakeSource{}
	if a != nil {
		src[a.ID] = a
	}
	f.svc = NewService(
		src,
		f.store,
		f.sender,
		NewRenderer("https://wealthsupernova.test/"),
		f.locker,
		config.DispatchConfig{PageSize: pageSize},
		quietLogger(),
	)
	return f
}

func TestDispatch_SummaryOmitsContent(t *testing.T) {
	f := newFixture(issue(tier.Free), 10)
	f.store.paid = []Recipient{{ID: "p1", Email: "blaze@x.com", Tier: tier.Blaze}}
	f.store.free = []Recipient{{ID: "f1", Email: "free@x.com"}}

	result, err := f.svc.Dispatch(context.Background(), Request{
		NewsletterID: "nl-1",
		EmailType:    "summary",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Sent)

	require.Len(t, f.sender.msgs, 2)
	for _, m := range f.sender.msgs {
		assert.Contains(t, m.HTML, "What the next cut means for bonds.")
		assert.Contains(t, m.HTML, "https://wealthsupernova.test/newsletters/rate-cuts-q3")
		assert.NotContains(t, m.HTML, "FULL-ISSUE-BODY")
		assert.Equal(t, "Rate Cuts in Q3", m.Subject)
	}
}

func TestDispatch_FullIncludesContentAndPreferencesLink(t *testing.T) {
	f := newFixture(issue(tier.Free), 10)
	f.store.paid = []Recipient{{ID: "p1", Email: "ada+news@x.com", Tier: tier.Premium}}

	_, err := f.svc.Dispatch(context.Background(), Request{
		NewsletterID: "nl-1",
		EmailType:    "full",
		EmailSubject: "This week",
	})
	require.NoError(t, err)

	require.Len(t, f.sender.msgs, 1)
	m := f.sender.msgs[0]
	assert.Contains(t, m.HTML, "FULL-ISSUE-BODY")
	assert.Contains(t, m.HTML, "/account/preferences?email=ada%2Bnews%40x.com")
	assert.Equal(t, "This week", m.Subject)
	assert.Contains(t, m.Text, "Read online:")
}

func TestDispatch_MissingNewsletterSendsNothing(t *testing.T) {
	f := newFixture(nil, 10)
	f.store.paid = []Recipient{{ID: "p1", Email: "a@x.com", Tier: tier.Premium}}

	_, err := f.svc.Dispatch(context.Background(), Request{NewsletterID: "missing", EmailType: "full"})
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, f.sender.msgs)
	assert.Empty(t, f.locker.held)
}

func TestDispatch_NoRecipients(t *testing.T) {
	f := newFixture(issue(tier.Free), 10)

	_, err := f.svc.Dispatch(context.Background(), Request{NewsletterID: "nl-1", EmailType: "full"})
	require.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, f.locker.held)
}

func TestDispatch_ContinuesPastFailures(t *testing.T) {
	f := newFixture(issue(tier.Free), 10)
	f.store.free = []Recipient{
		{ID: "f1", Email: "one@x.com"},
		{ID: "f2", Email: "two@x.com"},
		{ID: "f3", Email: "three@x.com"},
	}
	f.sender.fail["two@x.com"] = &ProviderError{StatusCode: 400, Body: "bad address"}

	result, err := f.svc.Dispatch(context.Background(), Request{NewsletterID: "nl-1", EmailType: "full"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Recipients)
	assert.Equal(t, 2, result.Sent)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "two@x.com", result.Failures[0].Recipient)
	assert.NotContains(t, result.Failures[0].Error(), "two@")

	var perr *ProviderError
	assert.True(t, errors.As(result.Failures[0], &perr))
}

func TestDispatch_PagesThroughEveryRecipient(t *testing.T) {
	f := newFixture(issue(tier.Free), 2)
	for i := 1; i <= 7; i++ {
		f.store.paid = append(f.store.paid, Recipient{
			ID:    fmt.Sprintf("p%d", i),
			Email: fmt.Sprintf("member%d@x.com", i),
			Tier:  tier.Blaze,
		})
	}
	f.store.free = []Recipient{
		{ID: "f1", Email: "MEMBER3@x.com"},
		{ID: "f2", Email: "listonly@x.com"},
	}

	result, err := f.svc.Dispatch(context.Background(), Request{NewsletterID: "nl-1", EmailType: "full"})
	require.NoError(t, err)
	assert.Equal(t, 8, result.Recipients)
	assert.Equal(t, 8, result.Sent)

	want := []string{
		"member1@x.com", "member2@x.com", "member3@x.com", "member4@x.com",
		"member5@x.com", "member6@x.com", "member7@x.com", "listonly@x.com",
	}
	if diff := cmp.Diff(want, f.sender.to()); diff != "" {
		t.Errorf("recipients mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_GatedIssueSendsSummaryToFreeList(t *testing.T) {
	f := newFixture(issue(tier.Premium), 10)
	f.store.paid = []Recipient{
		{ID: "p1", Email: "blaze@x.com", Tier: tier.Blaze},
		{ID: "p2", Email: "premium@x.com", Tier: tier.Premium},
	}
	f.store.free = []Recipient{{ID: "f1", Email: "free@x.com"}}

	result, err := f.svc.Dispatch(context.Background(), Request{NewsletterID: "nl-1", EmailType: "full"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recipients)
	require.Len(t, f.store.paidTiers, 1)
	assert.Equal(t, []tier.Tier{tier.Premium}, f.store.paidTiers[0])

	byTo := map[string]Message{}
	for _, m := range f.sender.msgs {
		byTo[m.To] = m
	}
	assert.Contains(t, byTo["premium@x.com"].HTML, "FULL-ISSUE-BODY")
	assert.NotContains(t, byTo["free@x.com"].HTML, "FULL-ISSUE-BODY")
	assert.Contains(t, byTo["free@x.com"].HTML, "available to Premium members")
	assert.NotContains(t, byTo, "blaze@x.com")
}

func TestDispatch_RefusesConcurrentBatch(t *testing.T) {
	f := newFixture(issue(tier.Free), 10)
	f.store.free = []Recipient{{ID: "f1", Email: "a@x.com"}}
	f.locker.held["nl-1"] = true

	_, err := f.svc.Dispatch(context.Background(), Request{NewsletterID: "nl-1", EmailType: "full"})
	require.ErrorIs(t, err, ErrInProgress)
	assert.Empty(t, f.sender.msgs)
}

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

func TestDispatch_WelcomeIssuesConfirmationToken(t *testing.T) {
	f := newFixture(nil, 10)
	f.store.contacts["s-1"] = &Contact{ID: "s-1", Name: "Ada", Email: "ada@x.com"}

	result, err := f.svc.Dispatch(context.Background(), Request{SubscriberID: "s-1", EmailType: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	require.Len(t, f.sender.msgs, 1)
	m := f.sender.msgs[0]
	assert.Equal(t, welcomeSubject, m.Subject)
	assert.Contains(t, m.HTML, "Welcome, Ada!")

	match := tokenPattern.FindStringSubmatch(m.HTML)
	require.Len(t, match, 2)
	assert.Equal(t, core.HashToken(match[1]), f.store.marked["s-1"])
}

func TestDispatch_WelcomeValidation(t *testing.T) {
	f := newFixture(nil, 10)

	_, err := f.svc.Dispatch(context.Background(), Request{EmailType: "welcome"})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.Dispatch(context.Background(), Request{SubscriberID: "nobody", EmailType: "welcome"})
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.Dispatch(context.Background(), Request{EmailType: "newsflash"})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSendWelcome_ReportsDeliveryFailure(t *testing.T) {
	f := newFixture(nil, 10)
	f.store.contacts["s-1"] = &Contact{ID: "s-1", Email: "ada@x.com"}
	f.sender.fail["ada@x.com"] = errors.New("connection reset")

	err := f.svc.SendWelcome(context.Background(), "s-1")
	require.Error(t, err)

	var derr DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Empty(t, f.store.marked)
}

func TestDispatch_TestModeSendsOneCopy(t *testing.T) {
	f := newFixture(issue(tier.Premium), 10)
	f.store.paid = []Recipient{{ID: "p1", Email: "premium@x.com", Tier: tier.Premium}}

	result, err := f.svc.Dispatch(context.Background(), Request{
		NewsletterID:     "nl-1",
		EmailType:        "test",
		TestEmailAddress: "editor@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recipients)

	require.Len(t, f.sender.msgs, 1)
	assert.Equal(t, "editor@x.com", f.sender.msgs[0].To)
	assert.Equal(t, "[TEST] Rate Cuts in Q3", f.sender.msgs[0].Subject)
	assert.Contains(t, f.sender.msgs[0].HTML, "FULL-ISSUE-BODY")
	assert.Empty(t, f.store.paidTiers)

	_, err = f.svc.Dispatch(context.Background(), Request{NewsletterID: "nl-1", EmailType: "test"})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestHandler_Send(t *testing.T) {
	f := newFixture(issue(tier.Free), 10)
	f.store.free = []Recipient{{ID: "f1", Email: "a@x.com"}, {ID: "f2", Email: "b@x.com"}}
	f.sender.fail["b@x.com"] = errors.New("timeout")

	r := chi.NewRouter()
	pass := func(next http.Handler) http.Handler { return next }
	NewHandler(f.svc).RegisterRoutes(r, pass, pass)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/send-newsletter", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"newsletterId":"nl-1","emailType":"full"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ok Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.True(t, ok.Success)
	assert.Equal(t, 2, ok.RecipientCount)
	assert.Equal(t, 1, ok.SentCount)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown newsletter", `{"newsletterId":"nope","emailType":"full"}`, http.StatusNotFound},
		{"bad type", `{"newsletterId":"nl-1","emailType":"blast"}`, http.StatusBadRequest},
		{"bad test address", `{"newsletterId":"nl-1","emailType":"test","testEmailAddress":"nope"}`, http.StatusBadRequest},
		{"not json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(tt.body)
			assert.Equal(t, tt.code, rec.Code)
			var env ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestHandler_SendMalformedIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	invalidUUID := &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}
	mock.ExpectQuery(`FROM newsletter_articles\s+WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(invalidUUID)
	mock.ExpectQuery(`FROM newsletter_subscribers\s+WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(invalidUUID)

	svc := NewService(
		article.NewRepository(sqlxDB),
		NewRepository(sqlxDB),
		&recordingSender{},
		NewRenderer("https://wealthsupernova.test"),
		newMemLocker(),
		config.DispatchConfig{PageSize: 10},
		quietLogger(),
	)

	r := chi.NewRouter()
	pass := func(next http.Handler) http.Handler { return next }
	NewHandler(svc).RegisterRoutes(r, pass, pass)

	for _, body := range []string{
		`{"newsletterId":"nope","emailType":"full"}`,
		`{"subscriberId":"nope","emailType":"welcome"}`,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/send-newsletter", strings.NewReader(body)))
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "***@x.com", maskEmail("ada@x.com"))
	assert.Equal(t, "***", maskEmail("not-an-address"))
}
