package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeSyncAppliesOffset(t *testing.T) {
	ahead := 3 * time.Second
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/public/time", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"ts":"%d"}]}`, time.Now().Add(ahead).UnixMilli())
	}))
	defer srv.Close()

	ts := NewTimeSync(srv.URL, "")
	require.NoError(t, ts.Sync(context.Background()))
	require.InDelta(t, ahead.Seconds(), ts.Offset().Seconds(), 0.5)
	require.WithinDuration(t, time.Now().Add(ahead), ts.Now(), 500*time.Millisecond)
	require.False(t, ts.LastSync().IsZero())
}

func TestTimeSyncErrorsKeepZeroOffset(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"http error", http.StatusInternalServerError, `{}`},
		{"api error", http.StatusOK, `{"code":"50001","msg":"busy","data":[]}`},
		{"bad ts", http.StatusOK, `{"code":"0","data":[{"ts":"later"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.payload)
			}))
			defer srv.Close()

			ts := NewTimeSync(srv.URL, "")
			require.Error(t, ts.Sync(context.Background()))
			require.Zero(t, ts.Offset())
		})
	}
}
