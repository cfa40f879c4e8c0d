// AngelaMos | 2026
// sender_test.go

package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/tier"
)

type flakySender struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (s *flakySender) Send(context.Context, Message) error {
	n := s.calls.Add(1)
	if s.failures < 0 || n <= s.failures {
		return s.err
	}
	return nil
}

func retryConfig(retries uint64) config.EmailConfig {
	return config.EmailConfig{
		MaxRetries:  retries,
		RetryBase:   time.Millisecond,
		SendTimeout: time.Second,
	}
}

func TestReliableSender_RetriesTemporaryFailures(t *testing.T) {
	next := &flakySender{failures: 2, err: &ProviderError{StatusCode: 503}}
	s := NewReliableSender(next, retryConfig(3))

	require.NoError(t, s.Send(context.Background(), Message{To: "a@x.com"}))
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestReliableSender_PermanentFailureIsNotRetried(t *testing.T) {
	next := &flakySender{failures: -1, err: &ProviderError{StatusCode: 400, Body: "invalid to"}}
	s := NewReliableSender(next, retryConfig(3))

	err := s.Send(context.Background(), Message{To: "a@x.com"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 400, perr.StatusCode)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestReliableSender_GivesUpAfterMaxRetries(t *testing.T) {
	next := &flakySender{failures: -1, err: &ProviderError{StatusCode: 500}}
	s := NewReliableSender(next, retryConfig(2))

	require.Error(t, s.Send(context.Background(), Message{To: "a@x.com"}))
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestReliableSender_StopsOnCancel(t *testing.T) {
	next := &flakySender{failures: -1, err: errors.New("dial tcp: timeout")}
	s := NewReliableSender(next, retryConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, s.Send(ctx, Message{To: "a@x.com"}))
	assert.LessOrEqual(t, next.calls.Load(), int32(1))
}

func TestSendGridSender_StatusMapping(t *testing.T) {
	var got *mail.SGMailV3
	status := 202
	s := &SendGridSender{
		from: mail.NewEmail("WealthSuperNova", "news@wealthsupernova.test"),
		send: func(_ context.Context, m *mail.SGMailV3) (int, string, error) {
			got = m
			return status, `{"errors":[]}`, nil
		},
	}

	err := s.Send(context.Background(), Message{
		To:      "ada@x.com",
		ToName:  "Ada",
		Subject: "Rate Cuts",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Rate Cuts", got.Subject)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "ada@x.com", got.Personalizations[0].To[0].Address)

	status = 429
	err = s.Send(context.Background(), Message{To: "ada@x.com", Subject: "x", HTML: "<p>x</p>"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Temporary())

	status = 401
	err = s.Send(context.Background(), Message{To: "ada@x.com", Subject: "x", HTML: "<p>x</p>"})
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Temporary())
}

func TestRepository_PaidRecipientsPagesByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`(?s)FROM user_subscriptions s.*s.tier = ANY\(\$1\).*payment_status = 'active'\s+AND \(s.subscription_end_date IS NULL OR s.subscription_end_date > NOW\(\)\).*a.id::text > \$2\s+ORDER BY a.id\s+LIMIT \$3`).
		WithArgs(sqlmock.AnyArg(), "p1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "tier"}).
			AddRow("p2", "b@x.com", "Bea", "premium"))

	got, err := repo.PaidRecipients(context.Background(), []tier.Tier{tier.Premium}, "p1", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tier.Premium, got[0].Tier)
	assert.Equal(t, AudiencePaid, got[0].Audience)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FreeRecipientsAreConfirmedOnly(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`(?s)FROM newsletter_subscribers\s+WHERE is_confirmed = TRUE`).
		WithArgs("", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "tier"}).
			AddRow("f1", "c@x.com", "Cy", "free"))

	got, err := repo.FreeRecipients(context.Background(), "", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, AudienceFree, got[0].Audience)
}
