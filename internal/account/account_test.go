// AngelaMos | 2026
// account_test.go

package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/middleware"
	"github.com/wealthsupernova/supernova/internal/tier"
)

type memRepo struct {
	mu    sync.Mutex
	accts map[string]*Account
	subs  map[string]*Subscription
	prefs map[string]*Preferences
}

func newMemRepo() *memRepo {
	return &memRepo{
		accts: map[string]*Account{},
		subs:  map[string]*Subscription{},
		prefs: map[string]*Preferences{},
	}
}

func (m *memRepo) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accts {
		if existing.Email == a.Email {
			return core.ErrDuplicateKey
		}
	}
	cp := *a
	m.accts[a.ID] = &cp
	return nil
}

func (m *memRepo) get(id string) (*Account, error) {
	a, ok := m.accts[id]
	if !ok || a.DeletedAt != nil {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	return a, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accts {
		if a.Email == email && a.DeletedAt == nil {
			cp := *a
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memRepo) update(id string, fn func(*Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	fn(a)
	return nil
}

func (m *memRepo) UpdateName(_ context.Context, a *Account) error {
	return m.update(a.ID, func(s *Account) { s.Name = a.Name })
}

func (m *memRepo) UpdateRole(_ context.Context, id, role string) error {
	return m.update(id, func(s *Account) { s.Role = role })
}

func (m *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return m.update(id, func(s *Account) { s.PasswordHash = hash })
}

func (m *memRepo) IncrementTokenVersion(_ context.Context, id string) error {
	return m.update(id, func(s *Account) { s.TokenVersion++ })
}

func (m *memRepo) SoftDelete(_ context.Context, id string) error {
	now := time.Now()
	return m.update(id, func(s *Account) { s.DeletedAt = &now })
}

func (m *memRepo) List(context.Context, ListAccountsParams) ([]Account, int, error) {
	return nil, 0, nil
}

func (m *memRepo) GetSubscription(_ context.Context, userID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) UpsertSubscription(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(s.UserID); err != nil {
		return err
	}
	cp := *s
	m.subs[s.UserID] = &cp
	return nil
}

func (m *memRepo) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) UpsertPreferences(_ context.Context, p *Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.prefs[p.UserID] = &cp
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seed(t *testing.T, svc *Service) string {
	t.Helper()
	id, err := svc.Create(context.Background(), " Ada@X.com ", "hash", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@x.com", id.Email)
	return id.ID
}

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want tier.Tier
	}{
		{"no subscription", nil, tier.Free},
		{"active premium", &Subscription{Tier: tier.Premium, PaymentStatus: PaymentActive}, tier.Premium},
		{"pending blaze", &Subscription{Tier: tier.Blaze, PaymentStatus: PaymentPending}, tier.Free},
		{"past due premium", &Subscription{Tier: tier.Premium, PaymentStatus: PaymentPastDue}, tier.Free},
		{"active but ended", &Subscription{Tier: tier.Premium, PaymentStatus: PaymentActive, EndDate: &past}, tier.Free},
		{"active until later", &Subscription{Tier: tier.Blaze, PaymentStatus: PaymentActive, EndDate: &future}, tier.Blaze},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.EffectiveTier(now))
		})
	}
}

func TestGetMe_UsesEffectiveTier(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	userID := seed(t, svc)
	ctx := context.Background()

	p, err := svc.GetMe(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Free, p.Tier)
	assert.Nil(t, p.Subscription)

	_, err = svc.SetSubscription(ctx, userID, SetSubscriptionRequest{Tier: "Premium", PaymentStatus: "active"})
	require.NoError(t, err)

	p, err = svc.GetMe(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Premium, p.Tier)

	ident, err := svc.GetByEmail(ctx, "ADA@x.com")
	require.NoError(t, err)
	assert.Equal(t, tier.Premium, ident.Tier)

	_, err = svc.GetMe(ctx, "")
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestSetSubscription_RejectsUnknownTier(t *testing.T) {
	svc := newTestService(newMemRepo())
	userID := seed(t, svc)

	_, err := svc.SetSubscription(context.Background(), userID, SetSubscriptionRequest{
		Tier: "platinum", PaymentStatus: "active",
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSetSubscription_BumpsTokenVersionOnChange(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	userID := seed(t, svc)
	ctx := context.Background()

	set := func(tr, status string) int {
		p, err := svc.SetSubscription(ctx, userID, SetSubscriptionRequest{Tier: tr, PaymentStatus: status})
		require.NoError(t, err)
		return p.Account.TokenVersion
	}

	assert.Equal(t, 1, set("premium", "active"))
	assert.Equal(t, 1, set("premium", "active"))
	assert.Equal(t, 2, set("blaze", "active"))
	assert.Equal(t, 3, set("blaze", "past_due"))
}

func TestPreferences_DefaultsAndPartialUpdate(t *testing.T) {
	svc := newTestService(newMemRepo())
	userID := seed(t, svc)
	ctx := context.Background()

	p, err := svc.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(userID), p)

	off := false
	on := true
	updated, err := svc.UpdatePreferences(ctx, userID, UpdatePreferencesRequest{
		EmailNewContent:   &off,
		PushNotifications: &on,
	})
	require.NoError(t, err)
	assert.False(t, updated.EmailNewContent)
	assert.True(t, updated.EmailMarketAlerts)
	assert.True(t, updated.EmailWeeklyDigest)
	assert.True(t, updated.PushNotifications)

	again, err := svc.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.False(t, again.EmailNewContent)
}

func TestSetRole(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	userID := seed(t, svc)
	ctx := context.Background()

	_, err := svc.SetRole(ctx, userID, userID, RoleUser)
	require.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.SetRole(ctx, "admin-1", userID, "owner")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	p, err := svc.SetRole(ctx, "admin-1", userID, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, p.Account.IsAdmin())
	assert.Equal(t, 1, p.Account.TokenVersion)
}

func TestDeleteMe(t *testing.T) {
	svc := newTestService(newMemRepo())
	userID := seed(t, svc)

	require.NoError(t, svc.DeleteMe(context.Background(), userID))
	_, err := svc.GetMe(context.Background(), userID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_PreferencesMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`FROM notification_preferences\s+WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetPreferences(context.Background(), "u-1")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertSubscription(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)INSERT INTO user_subscriptions.*ON CONFLICT \(user_id\) DO UPDATE.*tier_update_date = CASE`).
		WithArgs(sqlmock.AnyArg(), "u-1", "blaze", "active", nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "subscription_start_date", "tier_update_date", "created_at", "updated_at",
		}).AddRow("s-1", now, now, now, now))

	sub := &Subscription{UserID: "u-1", Tier: tier.Blaze, PaymentStatus: PaymentActive}
	require.NoError(t, repo.UpsertSubscription(context.Background(), sub))
	assert.Equal(t, "s-1", sub.ID)
	assert.Equal(t, now, sub.StartDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Preferences(t *testing.T) {
	svc := newTestService(newMemRepo())
	userID := seed(t, svc)

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{UserID: userID})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/account/preferences",
		strings.NewReader(`{"email_weekly_digest":false}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account/preferences", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data PreferencesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, PreferencesResponse{
		EmailNewContent:   true,
		EmailMarketAlerts: true,
		EmailWeeklyDigest: false,
		PushNotifications: false,
	}, env.Data)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tier":"free"`)
}
