package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"trivia_backend/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrActiveGameExists, http.StatusBadRequest},
		{fmt.Errorf("start: %w", service.ErrInsufficientBalance), http.StatusBadRequest},
		{service.ErrGameNotFound, http.StatusNotFound},
		{service.ErrWithdrawalNotFound, http.StatusNotFound},
		{service.ErrConcurrentUpdate, http.StatusConflict},
		{fmt.Errorf("draw: %w", service.ErrInProgress), http.StatusConflict},
		{service.ErrWeekFinalized, http.StatusConflict},
		{service.ErrChainUnavailable, http.StatusServiceUnavailable},
		{service.ErrQuestionsUnavailable, http.StatusServiceUnavailable},
		{errors.New("mongo down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
