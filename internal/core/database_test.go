// AngelaMos | 2026
// database_test.go

package core

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassifiers(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("get article: %w", &pgconn.PgError{Code: code})
	}

	tests := []struct {
		name      string
		err       error
		duplicate bool
		foreign   bool
		invalid   bool
		noMatch   bool
	}{
		{"unique violation", wrap("23505"), true, false, false, false},
		{"foreign key violation", wrap("23503"), false, true, false, false},
		{"malformed uuid", wrap("22P02"), false, false, true, true},
		{"no rows", fmt.Errorf("get article: %w", sql.ErrNoRows), false, false, false, true},
		{"other", errors.New("connection reset"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.duplicate, IsDuplicateKeyError(tt.err))
			assert.Equal(t, tt.foreign, IsForeignKeyError(tt.err))
			assert.Equal(t, tt.invalid, IsInvalidTextError(tt.err))
			assert.Equal(t, tt.noMatch, IsNoMatch(tt.err))
		})
	}
}
