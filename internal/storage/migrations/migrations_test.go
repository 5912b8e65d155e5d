package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFiles(t *testing.T) {
	pg, err := sqlFiles(postgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_journal.sql", "002_ledger.sql"}, pg)

	ch, err := sqlFiles(clickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_sale_volume.sql"}, ch)

	for _, file := range ch {
		data, err := fs.ReadFile(clickhouseFS, "clickhouse/"+file)
		require.NoError(t, err)
		stmts, err := splitStatements(string(data))
		require.NoError(t, err, file)
		assert.NotEmpty(t, stmts, file)
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    []string
		wantErr bool
	}{
		{
			name: "comments and blank lines",
			sql: `
-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (y UInt8) ENGINE = Memory;
`,
			want: []string{
				"CREATE TABLE a (x UInt8) ENGINE = Memory",
				"CREATE TABLE b (y UInt8) ENGINE = Memory",
			},
		},
		{
			name: "semicolon inside string",
			sql:  "SELECT 'a;b'; SELECT 2",
			want: []string{"SELECT 'a;b'", "SELECT 2"},
		},
		{
			name: "escaped quote",
			sql:  "SELECT 'it''s';",
			want: []string{"SELECT 'it''s'"},
		},
		{
			name: "trailing comment after statement",
			sql:  "SELECT 1; -- done; really",
			want: []string{"SELECT 1"},
		},
		{
			name:    "unterminated string",
			sql:     "SELECT 'oops;",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitStatements(tt.sql)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUnterminatedString)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/sale")
	require.NoError(t, err)
	assert.Equal(t, "sale", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
