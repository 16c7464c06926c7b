package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/feed"
	"github.com/pders01/roster/internal/storage"
)

// RunLog records generation runs. *storage.Store implements it.
type RunLog interface {
	SaveRun(run *storage.RunRecord) error
}

// Collector turns members into a sorted aggregate. *feed.Manager implements it.
type Collector interface {
	Collect(ctx context.Context, members []storage.Member) (*feed.Result, error)
}

// Generator is the single aggregation pipeline shared by the offline
// generate command, the manual refresh endpoint and the cache fallback.
type Generator struct {
	membersPath string
	collector   Collector
	snapshots   *storage.Snapshots
	runs        RunLog
	now         func() time.Time
}

// NewGenerator wires a generator. runs may be nil, in which case runs are
// not recorded.
func NewGenerator(cfg *config.Config, collector Collector, snapshots *storage.Snapshots, runs RunLog) *Generator {
	return &Generator{
		membersPath: cfg.Directory.Path,
		collector:   collector,
		snapshots:   snapshots,
		runs:        runs,
		now:         time.Now,
	}
}

// Report describes one generator run.
type Report struct {
	RunID     string
	Trigger   storage.RunTrigger
	StartedAt time.Time
	Duration  time.Duration
	Members   []storage.Member
	Articles  []storage.Article
	Sources   int
	Failures  []feed.SourceFailure
	Persisted bool
}

// Run loads the members, collects their articles and, when persist is set,
// writes both snapshot files. A nil report means nothing was aggregated. A
// non-nil report together with an error means aggregation succeeded but
// persisting it did not.
func (g *Generator) Run(ctx context.Context, trigger storage.RunTrigger, persist bool) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: g.now(),
	}
	log := debuglog.WithFields(debuglog.Fields{"run": report.RunID, "trigger": string(trigger)})

	members, err := config.LoadMembers(g.membersPath)
	if err != nil {
		err = fmt.Errorf("loading members: %w", err)
		g.record(report, err)
		return nil, err
	}

	result, err := g.collector.Collect(ctx, members)
	if err != nil {
		g.record(report, err)
		return nil, err
	}

	report.Members = members
	report.Articles = result.Articles
	if report.Articles == nil {
		report.Articles = []storage.Article{}
	}
	report.Sources = result.Sources
	report.Failures = result.Failures

	var persistErr error
	if persist {
		persistErr = g.persist(report)
		report.Persisted = persistErr == nil
	}

	report.Duration = g.now().Sub(report.StartedAt)
	g.record(report, persistErr)

	log.Infof("aggregated %d articles from %d sources (%d failed) in %s",
		len(report.Articles), report.Sources, len(report.Failures), report.Duration.Round(time.Millisecond))

	return report, persistErr
}

func (g *Generator) persist(report *Report) error {
	if err := g.snapshots.SaveArticles(report.Articles); err != nil {
		return fmt.Errorf("persisting articles: %w", err)
	}
	if err := g.snapshots.SaveUsers(report.Members); err != nil {
		return fmt.Errorf("persisting users: %w", err)
	}
	return nil
}

// record appends the run to the run log. Failures are only logged.
func (g *Generator) record(report *Report, runErr error) {
	if g.runs == nil {
		return
	}

	rec := &storage.RunRecord{
		ID:            report.RunID,
		Trigger:       report.Trigger,
		StartedAt:     report.StartedAt,
		Duration:      report.Duration,
		Articles:      len(report.Articles),
		Sources:       report.Sources,
		Persisted:     report.Persisted,
		FailedSources: make([]string, 0, len(report.Failures)),
	}
	if rec.Duration == 0 {
		rec.Duration = g.now().Sub(report.StartedAt)
	}
	for _, f := range report.Failures {
		rec.FailedSources = append(rec.FailedSources, f.URL)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if err := g.runs.SaveRun(rec); err != nil {
		debuglog.Warnf("recording run %s: %v", rec.ID, err)
	}
}
