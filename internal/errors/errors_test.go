package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusBadRequest, KindValidation},
		{http.StatusNotFound, KindValidation},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			e := FromStatus(tt.status, "", "cid")
			require.Equal(t, tt.want, e.Kind)
			require.Equal(t, tt.status, e.Status)
			require.NotEmpty(t, e.Message)
		})
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("like: %w", FromStatus(http.StatusUnauthorized, "token expired", ""))

	require.True(t, stderrors.Is(err, ErrUnauthorized))
	require.True(t, IsUnauthorized(err))
	require.False(t, stderrors.Is(err, ErrServer))
	require.Equal(t, KindUnauthorized, KindOf(err))
	require.Equal(t, "token expired", MessageOf(err))
}

func TestKindOfUnclassified(t *testing.T) {
	err := stderrors.New("boom")
	require.Equal(t, KindInternal, KindOf(err))
	require.Equal(t, "boom", MessageOf(err))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}
