// Package sweep expires stale entries from a greylist or auto-whitelist
// store. Values are taken to be decimal unix timestamps, the format the
// policy engine writes; anything else is left alone and counted.
package sweep

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"greyd/internal/logging"
	"greyd/internal/store"
)

var mlog = logging.For("sweep")

// Result summarizes one expiry pass.
type Result struct {
	Expired    []string // keys deleted this pass
	Unparsable int      // entries whose value was not a timestamp
	Failed     int      // entries whose delete failed
}

// Expire deletes every entry whose timestamp value is older than cutoff and
// reports the deleted keys. It runs over Store.Apply, so the pass is not
// atomic: entries written during the sweep may or may not be visited, and an
// entry deleted concurrently is simply skipped.
func Expire(st store.Store, cutoff time.Time) (Result, error) {
	var res Result
	limit := cutoff.Unix()
	expired, err := st.Apply(func(key, value string) (string, bool) {
		ts, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if perr != nil {
			res.Unparsable++
			return "", false
		}
		if ts >= limit {
			return "", false
		}
		if derr := st.Delete(key); derr != nil {
			if errors.Is(derr, store.ErrNotFound) {
				// Someone else got there first.
				return "", false
			}
			mlog.Error("delete during sweep failed", "key", key, "error", derr)
			res.Failed++
			return "", false
		}
		return key, true
	})
	if err != nil {
		return res, err
	}
	res.Expired = expired
	return res, nil
}

// Sweeper periodically expires entries older than MaxAge and saves the
// store. One Sweeper runs per store; the greylist and the auto-whitelist
// have independent ages and can be disabled independently.
type Sweeper struct {
	Store    store.Store
	Name     string // store name for log records
	MaxAge   time.Duration
	Interval time.Duration
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	mlog.Info("maintenance sweeper started",
		"store", s.Name, "interval", s.Interval, "max_age", s.MaxAge)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			mlog.Info("maintenance sweeper stopped", "store", s.Name)
			return
		}
	}
}

func (s *Sweeper) sweep() {
	run := uuid.NewString()[:8]
	cutoff := time.Now().Add(-s.MaxAge)
	res, err := Expire(s.Store, cutoff)
	if err != nil {
		mlog.Error("sweep failed", "store", s.Name, "run", run, "error", err)
		return
	}
	mlog.Info("sweep complete", "store", s.Name, "run", run,
		"expired", len(res.Expired), "unparsable", res.Unparsable, "failed", res.Failed)
	if err := s.Store.Save(); err != nil {
		mlog.Error("save after sweep failed", "store", s.Name, "run", run, "error", err)
	}
}
