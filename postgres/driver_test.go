package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karloscodes/lodge/database"
)

func TestConfigureDSN(t *testing.T) {
	cfg := database.DefaultConfig("")
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.Timezone = "UTC"

	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url", "postgres://u:p@localhost/app", "postgres://u:p@localhost/app?sslmode=disable&TimeZone=UTC"},
		{"url with query", "postgres://localhost/app?connect_timeout=5", "postgres://localhost/app?connect_timeout=5&sslmode=disable&TimeZone=UTC"},
		{"key value", "host=localhost dbname=app", "host=localhost dbname=app sslmode=disable TimeZone=UTC"},
		{"explicit sslmode kept", "postgres://localhost/app?sslmode=require", "postgres://localhost/app?sslmode=require&TimeZone=UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigureDSN(tt.dsn, cfg))
		})
	}
}

func TestRegistered(t *testing.T) {
	d, err := database.Lookup("postgres")
	assert.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
