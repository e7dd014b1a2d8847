package middleware

import (
	"net/http"
	"testing"
	"time"

	"trivia_backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT(t *testing.T) {
	require.NoError(t, service.InitJWT("test-secret"))

	r := gin.New()
	r.GET("/test", JWT(), func(c *gin.Context) {
		fid, ok := GetFID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"fid": fid})
	})

	token, err := service.GenerateJWT(42, time.Hour)
	require.NoError(t, err)

	w := do(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fid":42}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "garbage").Code)
}

func TestCronAuth(t *testing.T) {
	tests := map[string]struct {
		secret string
		token  string
		want   int
	}{
		"valid":        {secret: "s3cret", token: "s3cret", want: http.StatusOK},
		"wrong":        {secret: "s3cret", token: "s3cre", want: http.StatusUnauthorized},
		"missing":      {secret: "s3cret", token: "", want: http.StatusUnauthorized},
		"empty secret": {secret: "", token: "", want: http.StatusUnauthorized},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.GET("/test", CronAuth(tt.secret), ok)
			assert.Equal(t, tt.want, do(r, tt.token).Code)
		})
	}
}
