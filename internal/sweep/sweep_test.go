package sweep

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"greyd/internal/store"
)

func openStore(t *testing.T) *store.Embedded {
	t.Helper()
	s, err := store.OpenEmbedded(filepath.Join(t.TempDir(), "grey.db"))
	if err != nil {
		t.Fatalf("OpenEmbedded: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stamp(tm time.Time) string {
	return strconv.FormatInt(tm.Unix(), 10)
}

func TestExpireRemovesOnlyStaleEntries(t *testing.T) {
	s := openStore(t)
	now := time.Now()
	cutoff := now.Add(-time.Hour)

	entries := map[string]string{
		"stale-1": stamp(now.Add(-2 * time.Hour)),
		"stale-2": stamp(now.Add(-90 * time.Minute)),
		"fresh-1": stamp(now.Add(-time.Minute)),
		"fresh-2": stamp(now),
	}
	for k, v := range entries {
		if err := s.Update(k, v); err != nil {
			t.Fatal(err)
		}
	}

	res, err := Expire(s, cutoff)
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	sort.Strings(res.Expired)
	if len(res.Expired) != 2 || res.Expired[0] != "stale-1" || res.Expired[1] != "stale-2" {
		t.Errorf("Expired: got %v, want [stale-1 stale-2]", res.Expired)
	}
	if res.Unparsable != 0 || res.Failed != 0 {
		t.Errorf("counters: got %+v", res)
	}

	for k := range entries {
		_, found, err := s.Get(k)
		if err != nil {
			t.Fatal(err)
		}
		wantFound := k == "fresh-1" || k == "fresh-2"
		if found != wantFound {
			t.Errorf("%s present=%v, want %v", k, found, wantFound)
		}
	}
}

func TestExpireLeavesUnparsableValues(t *testing.T) {
	s := openStore(t)
	if err := s.Update("garbage", "not-a-timestamp"); err != nil {
		t.Fatal(err)
	}
	if err := s.Update("stale", stamp(time.Now().Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}

	res, err := Expire(s, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if res.Unparsable != 1 {
		t.Errorf("Unparsable: got %d, want 1", res.Unparsable)
	}
	if len(res.Expired) != 1 || res.Expired[0] != "stale" {
		t.Errorf("Expired: got %v, want [stale]", res.Expired)
	}
	if _, found, _ := s.Get("garbage"); !found {
		t.Error("unparsable entry must be left in place")
	}
}

func TestExpireEmptyStore(t *testing.T) {
	s := openStore(t)
	res, err := Expire(s, time.Now())
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if len(res.Expired) != 0 {
		t.Errorf("Expired: got %v, want empty", res.Expired)
	}
}

func TestSweeperRunExpiresOnTick(t *testing.T) {
	s := openStore(t)
	if err := s.Update("stale", stamp(time.Now().Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := s.Update("fresh", stamp(time.Now())); err != nil {
		t.Fatal(err)
	}

	sw := &Sweeper{Store: s, Name: "greylist", MaxAge: time.Hour, Interval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, found, _ := s.Get("stale"); !found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("stale entry not expired within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if _, found, _ := s.Get("fresh"); !found {
		t.Error("fresh entry should survive the sweeper")
	}
}
