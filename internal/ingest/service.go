// Package ingest wires the engine to its collaborators: it fetches raw days,
// derives and stores records, verifies and rebuilds the store, and runs the
// daily peak check.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"CovidSentinel/internal/calculator"
	"CovidSentinel/internal/collector"
	"CovidSentinel/internal/display"
	"CovidSentinel/internal/integrity"
	"CovidSentinel/internal/metrics"
	"CovidSentinel/internal/model"
	"CovidSentinel/internal/notifier"
	"CovidSentinel/internal/peaks"
	"CovidSentinel/internal/recorder"
	"CovidSentinel/internal/store"
)

// Options are the behavioural settings taken from configuration.
type Options struct {
	Excluded         map[string]bool
	RebuildOnInvalid bool
	// WaitTime is the delay between history fetch attempts during a rebuild.
	WaitTime time.Duration
}

// Service owns one record store and peak state and every side effect of
// updating them. Engine packages stay pure; all I/O happens here.
type Service struct {
	Records  *store.RecordStore
	Peaks    *store.PeakStore
	Fetcher  collector.Fetcher
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
	Panel    *display.Panel
	Opts     Options
	Now      func() time.Time

	valid atomic.Bool
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) recorder() recorder.Recorder {
	if s.Recorder == nil {
		return recorder.NewNoopRecorder()
	}
	return s.Recorder
}

// Today returns the current calendar date.
func (s *Service) Today() string { return model.FormatDate(s.now()) }

// Excluded reports whether no data is published on date.
func (s *Service) Excluded(date string) bool { return s.Opts.Excluded[date] }

// Valid reports the outcome of the last integrity check.
func (s *Service) Valid() bool { return s.valid.Load() }

func (s *Service) notify(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := notifier.SendWithRetry(ctx, s.Notifier, text, 2); err != nil {
		log.Printf("[ERROR] notify: %v", err)
	}
}

func (s *Service) event(date, feed, outcome, note string) {
	s.Metrics.Fetch(feed, outcome)
	if err := s.recorder().RecordIngest(&recorder.IngestEvent{Date: date, Feed: feed, Outcome: outcome, Note: note}); err != nil {
		log.Printf("[WARN] record ingest event: %v", err)
	}
}

// Ingest derives the record for raw from the stored history and prepends it.
// added is false when the newest stored record already carries raw's date.
// A raw day that does not directly follow the newest stored day is refused
// with integrity.ErrGap.
func (s *Service) Ingest(raw model.RawRecord) (rec model.DailyRecord, added bool, err error) {
	if err := raw.Validate(); err != nil {
		return model.DailyRecord{}, false, err
	}
	rec, added, err = s.Records.Update(func(prior []model.DailyRecord) (model.DailyRecord, error) {
		if len(prior) > 0 && prior[0].Date < raw.Date {
			if want := integrity.PreviousDate(raw.Date, s.Opts.Excluded); prior[0].Date != want {
				return model.DailyRecord{}, fmt.Errorf("%s follows %s, expected %s: %w", raw.Date, prior[0].Date, want, integrity.ErrGap)
			}
		}
		return calculator.ComputeDerived(raw, prior)
	})
	if err != nil {
		return model.DailyRecord{}, false, fmt.Errorf("store %s: %w", raw.Date, err)
	}
	if !added {
		return rec, false, nil
	}
	log.Printf("[INFO] record %s stored", rec.Date)
	if err := s.recorder().RecordDaily(&rec); err != nil {
		log.Printf("[WARN] archive record %s: %v", rec.Date, err)
	}
	s.Metrics.Ingested(rec, s.now())
	return rec, true, nil
}

// PollPrimary fetches the newest case/death day and ingests it when it is
// dated date. It reports whether the feed is updated for date.
func (s *Service) PollPrimary(ctx context.Context, date string) (bool, error) {
	raw, err := s.Fetcher.LatestPrimary(ctx)
	if err != nil {
		s.event(date, recorder.FeedPrimary, recorder.OutcomeError, err.Error())
		return false, err
	}
	if raw.Date != date {
		s.event(date, recorder.FeedPrimary, recorder.OutcomeStale, "latest is "+raw.Date)
		if s.Panel != nil && raw.Date != s.Panel.Date() && raw.Validate() == nil {
			if err := s.Panel.ShowStale(raw); err != nil {
				log.Printf("[WARN] display: %v", err)
			}
		}
		return false, nil
	}
	if err := raw.Validate(); err != nil {
		s.event(date, recorder.FeedPrimary, recorder.OutcomeInvalid, err.Error())
		log.Printf("[WARN] primary verification failed: %v", err)
		return false, nil
	}

	rec, added, err := s.Ingest(raw)
	if errors.Is(err, integrity.ErrGap) {
		log.Printf("[WARN] %v", err)
		s.setValid(false)
		if !s.Opts.RebuildOnInvalid {
			s.event(date, recorder.FeedPrimary, recorder.OutcomeInvalid, err.Error())
			return false, nil
		}
		if _, err := s.Rebuild(ctx, "gap"); err != nil {
			s.event(date, recorder.FeedPrimary, recorder.OutcomeError, err.Error())
			return false, err
		}
		rec, added, err = s.Ingest(raw)
		if err == nil && !added {
			// rebuilt history already carries date
			rec, _, err = s.Records.Find(date)
			added = err == nil
		}
	}
	if err != nil {
		s.event(date, recorder.FeedPrimary, recorder.OutcomeError, err.Error())
		return false, err
	}
	if !added {
		s.event(date, recorder.FeedPrimary, recorder.OutcomeDuplicate, "")
		return true, nil
	}
	s.event(date, recorder.FeedPrimary, recorder.OutcomeIngested, "")

	if s.Panel != nil {
		if err := s.Panel.ShowRecord(rec); err != nil {
			log.Printf("[WARN] display: %v", err)
		}
	}
	history, err := s.Records.ReadAll()
	if err != nil {
		log.Printf("[WARN] reload store for message: %v", err)
	}
	s.notify(ctx, notifier.FormatDaily(rec, history, 1, s.now()))
	return true, nil
}

// PollSecondary fetches the vaccination feed and posts it when it is dated
// date. It reports whether the feed is updated for date.
func (s *Service) PollSecondary(ctx context.Context, date string) (bool, error) {
	rec, err := s.Fetcher.LatestSecondary(ctx)
	if err != nil {
		s.event(date, recorder.FeedSecondary, recorder.OutcomeError, err.Error())
		return false, err
	}
	if rec.Date != date {
		s.event(date, recorder.FeedSecondary, recorder.OutcomeStale, "latest is "+rec.Date)
		return false, nil
	}
	if err := rec.Validate(); err != nil {
		s.event(date, recorder.FeedSecondary, recorder.OutcomeInvalid, err.Error())
		log.Printf("[WARN] secondary verification failed: %v", err)
		return false, nil
	}
	s.event(date, recorder.FeedSecondary, recorder.OutcomeIngested, "")
	s.notify(ctx, notifier.FormatSecondary(rec, s.now()))
	return true, nil
}

// Timeout handles a search window that closed with no primary data.
func (s *Service) Timeout(ctx context.Context, date string) {
	log.Printf("[WARN] no data found for %s, timed out", date)
	s.event(date, recorder.FeedPrimary, recorder.OutcomeTimeout, "")
	if s.Panel != nil {
		if err := s.Panel.ShowNoData(); err != nil {
			log.Printf("[WARN] display: %v", err)
		}
	}
	s.notify(ctx, notifier.TimeoutNotice)
}

// SkipExcluded announces a day on which nothing is published.
func (s *Service) SkipExcluded(ctx context.Context, date string) {
	log.Printf("[INFO] %s is excluded, no update today", date)
	s.event(date, recorder.FeedPrimary, recorder.OutcomeExcluded, "")
	s.notify(ctx, notifier.ExcludedNotice)
}

// Verify checks the store against today. An invalid store triggers a rebuild
// when configured; the result is still false and callers re-verify.
func (s *Service) Verify(ctx context.Context, today string) (bool, error) {
	records, err := s.Records.ReadAll()
	if err != nil {
		return false, err
	}
	if integrity.IsStoreValid(records, s.Opts.Excluded, today) {
		log.Println("[INFO] record store valid")
		s.setValid(true)
		return true, nil
	}
	log.Printf("[WARN] record store invalid, first gap at %s", integrity.FirstGap(records, s.Opts.Excluded, today))
	s.setValid(false)
	if !s.Opts.RebuildOnInvalid {
		return false, nil
	}
	if _, err := s.Rebuild(ctx, "integrity"); err != nil {
		return false, fmt.Errorf("rebuild after failed verification: %w", err)
	}
	return false, nil
}

func (s *Service) setValid(ok bool) {
	s.valid.Store(ok)
	s.Metrics.StoreValid(ok)
}

// Rebuild refetches the full history, recomputes every record and replays the
// peak state. History fetches are retried every WaitTime until ctx ends.
func (s *Service) Rebuild(ctx context.Context, reason string) (n int, err error) {
	start := s.now()
	defer func() {
		d := s.now().Sub(start)
		s.Metrics.Rebuild(d, err)
		if rerr := s.recorder().RecordRebuild(&recorder.RebuildEvent{Reason: reason, Records: n, Duration: d, Err: err}); rerr != nil {
			log.Printf("[WARN] record rebuild: %v", rerr)
		}
	}()

	log.Printf("[INFO] mass recompute starting (%s)", reason)
	raw, err := s.fetchHistory(ctx)
	if err != nil {
		return 0, err
	}
	records, err := calculator.RebuildAll(raw, s.Opts.Excluded)
	if err != nil {
		return 0, fmt.Errorf("recompute: %w", err)
	}
	state := peaks.Replay(records)

	if err := s.Records.ReplaceAll(records); err != nil {
		return 0, err
	}
	if err := s.Peaks.Save(state); err != nil {
		return 0, err
	}
	for i := range records {
		if err := s.recorder().RecordDaily(&records[i]); err != nil {
			log.Printf("[WARN] archive record %s: %v", records[i].Date, err)
			break
		}
	}
	if len(records) > 0 {
		s.Metrics.Averages(records[0])
	}
	s.setValid(integrity.IsStoreValid(records, s.Opts.Excluded, s.Today()))
	log.Printf("[INFO] mass recompute done: %d records", len(records))
	return len(records), nil
}

func (s *Service) fetchHistory(ctx context.Context) ([]model.RawRecord, error) {
	wait := s.Opts.WaitTime
	if wait <= 0 {
		wait = time.Minute
	}
	for attempt := 1; ; attempt++ {
		raw, err := s.Fetcher.PrimaryHistory(ctx)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[WARN] history fetch failed (attempt %d): %v, retrying in %v", attempt, err, wait)
		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), err)
		case <-time.After(wait):
		}
	}
}

// CheckPeaks evaluates the newest stored day against the persisted peak state,
// saves the state when a flag fired and posts the outcome.
func (s *Service) CheckPeaks(ctx context.Context) (peaks.Result, error) {
	records, err := s.Records.ReadAll()
	if err != nil {
		return peaks.Result{}, err
	}
	if len(records) == 0 {
		return peaks.Result{}, store.ErrNotFound
	}
	state, err := s.Peaks.Load()
	if err != nil {
		return peaks.Result{}, err
	}

	next, res := peaks.Evaluate(state, records, model.TrackedMetrics)
	if res.Changed() {
		if err := s.Peaks.Save(next); err != nil {
			return res, err
		}
		s.recordPeaks(res, records[0])
	}
	lines := peaks.Messages(res)
	log.Printf("[INFO] peak check for %s: %d line(s)", res.Date, len(lines))
	s.notify(ctx, notifier.FormatPeakEvents(lines))
	return res, nil
}

func (s *Service) recordPeaks(res peaks.Result, rec model.DailyRecord) {
	for _, m := range res.Metrics {
		f := res.Flags[m]
		value := rec.Metric(m).RollingAverages.Seven.Average
		for _, ev := range []struct {
			on   bool
			name string
		}{
			{f.CreatedGlobal, "CREATED_GLOBAL"},
			{f.NewGlobal, "NEW_GLOBAL"},
			{f.CreatedLocal, "CREATED_LOCAL"},
			{f.NewLocal, "NEW_LOCAL"},
			{f.ExpiredLocal, "EXPIRED_LOCAL"},
		} {
			if !ev.on {
				continue
			}
			s.Metrics.PeakEvent(m, ev.name)
			if err := s.recorder().RecordPeak(&recorder.PeakEvent{Date: res.Date, Metric: m, Event: ev.name, Value: value}); err != nil {
				log.Printf("[WARN] record peak event: %v", err)
			}
		}
	}
}

// EnsureValid verifies the store against today and, when the check triggered
// a rebuild, verifies the rebuilt store once more.
func (s *Service) EnsureValid(ctx context.Context, today string) (bool, error) {
	ok, err := s.Verify(ctx, today)
	if err != nil || ok || !s.Opts.RebuildOnInvalid {
		return ok, err
	}
	ok, err = s.Verify(ctx, today)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Printf("[WARN] record store still invalid after rebuild")
	}
	return ok, nil
}

// Startup verifies the store, rebuilding when needed.
func (s *Service) Startup(ctx context.Context) error {
	_, err := s.EnsureValid(ctx, s.Today())
	return err
}
