package repository

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "translated gorm duplicate key",
			err:  fmt.Errorf("failed to save entity: %w", gorm.ErrDuplicatedKey),
			want: true,
		},
		{
			name: "raw pgx unique violation",
			err:  fmt.Errorf("failed to save entity: %w", &pgconn.PgError{Code: "23505"}),
			want: true,
		},
		{
			name: "other pgx error code",
			err:  fmt.Errorf("failed to save entity: %w", &pgconn.PgError{Code: "40P01"}),
			want: false,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("connection refused"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
