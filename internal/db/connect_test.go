package db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		override string
		want     string
	}{
		{"from path", "mongodb://localhost:27017/quiz?replicaSet=rs0", "", "quiz"},
		{"override wins", "mongodb://localhost:27017/quiz", "other", "other"},
		{"default", "mongodb+srv://user:pw@cluster.example.net/", "", DefaultDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabaseName(tt.uri, tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectRedis(t *testing.T) {
	assert.Nil(t, ConnectRedis("", "", 0))

	mr := miniredis.RunT(t)
	client := ConnectRedis(mr.Addr(), "", 0)
	require.NotNil(t, client)
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, ConnectRedis(addr, "", 0))
}
