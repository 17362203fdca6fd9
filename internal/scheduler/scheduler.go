package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	"CovidSentinel/internal/config"
	"CovidSentinel/internal/ingest"
	"CovidSentinel/internal/model"
	"CovidSentinel/internal/notifier"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the daily search and the chat commands.
type Scheduler struct {
	Cron    *cron.Cron
	Service *ingest.Service
	Config  *config.Config
	Version string
	Ctx     context.Context

	mu           sync.Mutex
	searching    bool
	excludedSent string
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, svc *ingest.Service, cfg *config.Config, version string) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Service: svc,
		Config:  cfg,
		Version: version,
		Ctx:     ctx,
	}
}

// RegisterAll registers the daily search and the midnight reset.
func (s *Scheduler) RegisterAll() error {
	start, err := config.ParseClock(s.Config.Ingest.StartSearchingTime)
	if err != nil {
		return fmt.Errorf("start searching time: %w", err)
	}
	if _, err := s.Cron.AddFunc(start.CronSpec(), s.searchTask); err != nil {
		return fmt.Errorf("register search task: %w", err)
	}
	if _, err := s.Cron.AddFunc("0 0 0 * * *", s.newDay); err != nil {
		return fmt.Errorf("register midnight reset: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) now() time.Time {
	if s.Service.Now != nil {
		return s.Service.Now()
	}
	return time.Now()
}

// RunNow starts a search immediately when the current time is inside today's
// window, e.g. after a restart in the afternoon.
func (s *Scheduler) RunNow() {
	now := s.now()
	start, deadline, err := s.Config.Window(now)
	if err != nil {
		log.Printf("[ERROR] search window: %v", err)
		return
	}
	if now.Before(start) || !now.Before(deadline) {
		log.Printf("[INFO] outside search window (%s-%s), waiting for schedule",
			start.Format("15:04"), deadline.Format("15:04"))
		return
	}
	s.searchTask()
}

func (s *Scheduler) searchTask() {
	s.mu.Lock()
	if s.searching {
		s.mu.Unlock()
		log.Println("[WARN] search already running, skipping")
		return
	}
	s.searching = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.searching = false
		s.mu.Unlock()
	}()

	if err := s.Search(s.Ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[ERROR] daily search: %v", err)
	}
}

func (s *Scheduler) newDay() {
	log.Println("[INFO] new day, indicators reset")
	if s.Service.Panel == nil {
		return
	}
	if err := s.Service.Panel.NewDay(); err != nil {
		log.Printf("[WARN] display: %v", err)
	}
}

// Search polls both feeds every wait interval until each has published or the
// timeout passes. The primary feed is searched for today and the vaccination
// feed for the previous day.
func (s *Scheduler) Search(ctx context.Context) error {
	now := s.now()
	today := model.FormatDate(now)
	if s.Service.Excluded(today) {
		s.mu.Lock()
		first := s.excludedSent != today
		s.excludedSent = today
		s.mu.Unlock()
		if first {
			s.Service.SkipExcluded(ctx, today)
		}
		return nil
	}
	previous := model.FormatDate(now.AddDate(0, 0, -1))

	_, deadline, err := s.Config.Window(now)
	if err != nil {
		return err
	}
	if _, err := s.Service.EnsureValid(ctx, today); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[ERROR] verify before search: %v", err)
	}

	primaryDone := false
	if latest, err := s.Service.Records.Latest(); err == nil && latest.Date == today {
		log.Printf("[INFO] %s already stored", today)
		primaryDone = true
	}
	secondaryDone := false

	panel := s.Service.Panel
	if panel != nil && !primaryDone {
		if err := panel.Searching(); err != nil {
			log.Printf("[WARN] display: %v", err)
		}
	}
	log.Printf("[INFO] searching for %s until %s", today, deadline.Format(time.RFC3339))

	for {
		var failed bool
		if !primaryDone {
			ok, err := s.Service.PollPrimary(ctx, today)
			if err != nil {
				log.Printf("[ERROR] poll primary: %v", err)
				failed = true
			}
			if ok {
				primaryDone = true
				if _, err := s.Service.CheckPeaks(ctx); err != nil {
					log.Printf("[ERROR] peak check: %v", err)
				}
			}
		}
		if !secondaryDone {
			ok, err := s.Service.PollSecondary(ctx, previous)
			if err != nil {
				log.Printf("[ERROR] poll secondary: %v", err)
				failed = true
			}
			secondaryDone = ok
		}
		if panel != nil {
			if err := panel.SetError(failed); err != nil {
				log.Printf("[WARN] display: %v", err)
			}
		}

		if primaryDone && secondaryDone {
			log.Printf("[INFO] all feeds updated for %s", today)
			return nil
		}
		if !s.now().Before(deadline) {
			if !primaryDone && !secondaryDone {
				s.Service.Timeout(ctx, today)
			} else {
				log.Printf("[WARN] search for %s ended with primary=%t secondary=%t", today, primaryDone, secondaryDone)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Service.Opts.WaitTime):
		}
	}
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] command %q panicked: %v", text, r)
			reply = notifier.ApologyNotice
		}
	}()

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd, args := fields[0], fields[1:]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch strings.ToLower(cmd) {
	case "/getdata":
		return s.getData(args)
	case "/peaks":
		return s.peaks(args)
	case "/version":
		var latest *model.DailyRecord
		if rec, err := s.Service.Records.Latest(); err == nil {
			latest = &rec
		}
		return notifier.FormatVersion(s.Version, latest, s.Service.Valid())
	default:
		return html.EscapeString(notifier.HelpText)
	}
}

func (s *Scheduler) getData(args []string) string {
	if len(args) == 0 {
		return html.EscapeString(notifier.HelpText)
	}
	records, err := s.Service.Records.ReadAll()
	if err != nil {
		log.Printf("[ERROR] read store: %v", err)
		return notifier.ApologyNotice
	}

	idx := -1
	if strings.EqualFold(args[0], "latest") {
		if len(records) > 0 {
			idx = 0
		}
	} else {
		if _, err := model.ParseDate(args[0]); err != nil {
			return fmt.Sprintf("Invalid date: %s. Dates are given as YYYY-MM-DD.", html.EscapeString(args[0]))
		}
		for i, r := range records {
			if r.Date == args[0] {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return notifier.NotFoundNotice
	}
	return notifier.FormatDaily(records[idx], records, idx+1, s.now())
}

func (s *Scheduler) peaks(args []string) string {
	metrics := model.TrackedMetrics
	kinds := []model.PeakKind{model.PeakLocal, model.PeakGlobal}

	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "help":
			return html.EscapeString(notifier.PeaksHelp)
		case "cases":
			metrics = []model.Metric{model.Cases}
		case "deaths":
			metrics = []model.Metric{model.Deaths}
		default:
			return "Invalid metric: " + html.EscapeString(args[0])
		}
	}
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "local":
			kinds = []model.PeakKind{model.PeakLocal}
		case "global":
			kinds = []model.PeakKind{model.PeakGlobal}
		default:
			return "Invalid length: " + html.EscapeString(args[1])
		}
	}

	state, err := s.Service.Peaks.Load()
	if err != nil {
		log.Printf("[ERROR] load peaks: %v", err)
		return notifier.ApologyNotice
	}
	return notifier.FormatPeakState(state, metrics, kinds)
}
