package okx

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// TimeSync keeps the offset between local and OKX server time so that
// ticker staleness is measured on the exchange clock.
type TimeSync struct {
	client       *resty.Client
	offset       time.Duration // server - local
	lastSync     time.Time
	syncInterval time.Duration
	mu           sync.RWMutex
	log          *logrus.Entry
}

// NewTimeSync creates a syncer against baseURL, tunnelling through proxyURL
// when set (with the same relaxed certificate checks as the websocket).
func NewTimeSync(baseURL, proxyURL string) *TimeSync {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return &TimeSync{
		client:       client,
		syncInterval: 30 * time.Minute,
		log:          logrus.WithField("component", "okx-timesync"),
	}
}

type serverTimeResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		TS string `json:"ts"`
	} `json:"data"`
}

// Start runs an initial sync and then refreshes periodically until ctx ends.
// Failures keep the previous offset (zero initially).
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		ts.log.WithError(err).Warn("initial time sync failed, using local clock")
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					ts.log.WithError(err).Warn("time sync failed")
				}
			}
		}
	}()
}

// Sync fetches /api/v5/public/time and updates the offset.
func (ts *TimeSync) Sync(ctx context.Context) error {
	var out serverTimeResponse
	before := time.Now()
	resp, err := ts.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v5/public/time")
	if err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	after := time.Now()
	if resp.IsError() {
		return fmt.Errorf("server time: http %d", resp.StatusCode())
	}
	if out.Code != "0" || len(out.Data) == 0 {
		return fmt.Errorf("server time: code=%s msg=%s", out.Code, out.Msg)
	}
	ms, err := strconv.ParseInt(out.Data[0].TS, 10, 64)
	if err != nil {
		return fmt.Errorf("server time ts %q: %w", out.Data[0].TS, err)
	}

	// Assume symmetric latency.
	local := before.Add(after.Sub(before) / 2)
	offset := time.UnixMilli(ms).Sub(local)

	ts.mu.Lock()
	ts.offset = offset
	ts.lastSync = after
	ts.mu.Unlock()

	ts.log.WithField("offset", offset).Info("time synced")
	return nil
}

// Now returns local time adjusted by the server offset.
func (ts *TimeSync) Now() time.Time {
	return time.Now().Add(ts.Offset())
}

// Offset returns the current server-local offset.
func (ts *TimeSync) Offset() time.Duration {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}

// LastSync returns when the offset was last refreshed.
func (ts *TimeSync) LastSync() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastSync
}
