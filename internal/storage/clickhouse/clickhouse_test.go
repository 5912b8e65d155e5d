package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		wantAddr string
		wantDB   string
		wantUser string
		wantTLS  bool
		wantLZ4  bool
		wantErr  bool
	}{
		{name: "full", dsn: "clickhouse://bob:secret@db:9440/sale", wantAddr: "db:9440", wantDB: "sale", wantUser: "bob"},
		{name: "default port", dsn: "clickhouse://localhost/sale", wantAddr: "localhost:9000", wantDB: "sale"},
		{name: "no database", dsn: "clickhouse://localhost:9000", wantAddr: "localhost:9000"},
		{name: "secure compressed", dsn: "clickhouse://db:9440/sale?secure=true&compress=lz4&dial_timeout=5s", wantAddr: "db:9440", wantDB: "sale", wantTLS: true, wantLZ4: true},
		{name: "bad scheme", dsn: "http://localhost:8123/sale", wantErr: true},
		{name: "bad secure", dsn: "clickhouse://localhost/sale?secure=maybe", wantErr: true},
		{name: "bad compression", dsn: "clickhouse://localhost/sale?compress=zstd9", wantErr: true},
		{name: "bad timeout", dsn: "clickhouse://localhost/sale?dial_timeout=soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantAddr}, opts.Addr)
			assert.Equal(t, tt.wantDB, opts.Auth.Database)
			assert.Equal(t, tt.wantUser, opts.Auth.Username)
			assert.Equal(t, tt.wantTLS, opts.TLS != nil)
			assert.Equal(t, tt.wantLZ4, opts.Compression != nil)
		})
	}
}
