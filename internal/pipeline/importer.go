package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/store"
	"github.com/stayguide/guide-cli/pkg/describe"
	"github.com/stayguide/guide-cli/pkg/places"
)

// ExecutorConfig wires an Executor's collaborators.
type ExecutorConfig struct {
	Client    places.Client
	Resolver  *CategoryResolver
	Inventory store.InventoryStore
	// Runs checkpoints progress; nil disables durability (dry runs).
	Runs store.RunStore
	// Describer generates entry descriptions; nil disables them.
	Describer   describe.Generator
	OwnerID     string
	MaxPhotos   int
	Concurrency int
}

// Executor imports a batch of curated candidates. Item failures are isolated:
// one item's provider or store error lands in the outcome's error list and
// the rest of the batch continues.
type Executor struct {
	cfg ExecutorConfig
}

// NewExecutor creates an import executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = 6
	}
	return &Executor{cfg: cfg}
}

type workItem struct {
	index int
	cand  model.Candidate
}

type itemResult struct {
	index   int
	cand    model.Candidate
	status  model.ItemStatus
	entryID string
	itemErr *model.ItemError
}

// Run imports the batch, checkpointing each item against the run store. A
// failure to create the run record aborts before any item is processed;
// after that, only per-item errors occur and the outcome always satisfies
// Imported + SkippedDuplicates + len(Errors) == len(items).
func (e *Executor) Run(ctx context.Context, run model.Run, items []model.Candidate, progress *Progress) (*model.Outcome, error) {
	if e.cfg.Runs != nil {
		if err := e.cfg.Runs.CreateRun(ctx, run, items); err != nil {
			return nil, &PersistenceError{Op: "create run", Err: err}
		}
	}

	work := make([]workItem, len(items))
	for i, cand := range items {
		work[i] = workItem{index: i, cand: cand}
	}

	outcome := &model.Outcome{RunID: run.ID}
	e.process(ctx, run.ID, work, outcome, progress)

	if e.cfg.Runs != nil {
		if err := e.cfg.Runs.CompleteRun(ctx, run.ID, outcome); err != nil {
			zap.L().Error("failed to record run completion",
				zap.String("run_id", run.ID),
				zap.Error(err))
		}
	}
	return outcome, nil
}

// Resume continues an interrupted run: completed items keep their recorded
// outcome and only pending items are processed.
func (e *Executor) Resume(ctx context.Context, run *model.Run, items []model.RunItem, progress *Progress) (*model.Outcome, error) {
	outcome := &model.Outcome{RunID: run.ID}
	var work []workItem
	for _, it := range items {
		switch it.Status {
		case model.ItemStatusImported:
			outcome.Imported++
		case model.ItemStatusSkipped:
			outcome.SkippedDuplicates++
		case model.ItemStatusFailed:
			// The checkpoint records the reason but not which stage failed,
			// so re-reported errors carry a neutral stage.
			outcome.Errors = append(outcome.Errors, model.ItemError{
				ExternalID: it.Candidate.ExternalID,
				Stage:      "resumed",
				Reason:     it.Error,
			})
		default:
			work = append(work, workItem{index: it.Index, cand: it.Candidate})
		}
	}

	e.process(ctx, run.ID, work, outcome, progress)

	if e.cfg.Runs != nil {
		if err := e.cfg.Runs.CompleteRun(ctx, run.ID, outcome); err != nil {
			zap.L().Error("failed to record run completion",
				zap.String("run_id", run.ID),
				zap.Error(err))
		}
	}
	return outcome, nil
}

// process runs the worker pool and accumulates results. Accumulation is
// single-threaded so outcome mutation and checkpoint writes never race.
func (e *Executor) process(ctx context.Context, runID string, work []workItem, outcome *model.Outcome, progress *Progress) {
	results := make(chan itemResult, len(work))

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			switch res.status {
			case model.ItemStatusImported:
				outcome.Imported++
			case model.ItemStatusSkipped:
				outcome.SkippedDuplicates++
			case model.ItemStatusFailed:
				outcome.Errors = append(outcome.Errors, *res.itemErr)
			}
			if progress != nil {
				progress.Add(1)
			}
			if e.cfg.Runs != nil {
				var reason string
				if res.itemErr != nil {
					reason = res.itemErr.Reason
				}
				if err := e.cfg.Runs.MarkItem(ctx, runID, res.index, res.status, res.entryID, reason); err != nil {
					zap.L().Warn("failed to checkpoint item",
						zap.String("run_id", runID),
						zap.Int("index", res.index),
						zap.Error(err))
				}
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, w := range work {
		g.Go(func() error {
			results <- e.importItem(gctx, w)
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	close(results)
	<-collected
}

func (e *Executor) importItem(ctx context.Context, w workItem) itemResult {
	res := itemResult{index: w.index, cand: w.cand}

	if w.cand.IsDuplicate {
		res.status = model.ItemStatusSkipped
		return res
	}

	detail, err := e.fetchDetail(ctx, w.cand)
	if err != nil {
		res.status = model.ItemStatusFailed
		res.itemErr = &model.ItemError{
			ExternalID: w.cand.ExternalID,
			Stage:      "detail",
			Reason:     err.Error(),
		}
		return res
	}

	entry := model.Entry{
		OwnerID:      e.cfg.OwnerID,
		Name:         w.cand.Name,
		Address:      w.cand.Address,
		Coordinates:  w.cand.Coordinates,
		Phone:        detail.Phone,
		Website:      detail.Website,
		OpeningHours: detail.OpeningHours,
		RouteURL:     detail.RouteURL,
		Rating:       w.cand.Rating,
		RatingCount:  w.cand.RatingCount,
	}
	entry.CategoryID = e.cfg.Resolver.Resolve(ctx, w.cand.EffectiveCategory())

	if e.cfg.Describer != nil && len(detail.Reviews) > 0 {
		desc, err := e.cfg.Describer.Generate(ctx, describe.Input{
			PlaceName:   w.cand.Name,
			Rating:      w.cand.Rating,
			RatingCount: w.cand.RatingCount,
			Reviews:     detail.Reviews,
		})
		if err != nil {
			zap.L().Warn("description generation failed",
				zap.String("place", w.cand.Name),
				zap.Error(err))
		} else {
			entry.Description = desc
		}
	}

	entryID, err := e.cfg.Inventory.CreateEntry(ctx, entry)
	if err != nil {
		res.status = model.ItemStatusFailed
		res.itemErr = &model.ItemError{
			ExternalID: w.cand.ExternalID,
			Stage:      "persist",
			Reason:     err.Error(),
		}
		return res
	}

	e.attachMedia(ctx, entryID, w.cand, detail)

	res.status = model.ItemStatusImported
	res.entryID = entryID
	return res
}

func (e *Executor) fetchDetail(ctx context.Context, cand model.Candidate) (*model.PlaceDetail, error) {
	p, err := e.cfg.Client.Details(ctx, cand.ExternalID)
	if err != nil {
		return nil, &ProviderError{Op: "details", PlaceID: cand.ExternalID, Err: err}
	}

	detail := &model.PlaceDetail{
		Phone:    p.Phone,
		Website:  p.WebsiteURI,
		RouteURL: p.GoogleMapsURI,
	}
	if detail.RouteURL == "" {
		detail.RouteURL = places.RouteURL(cand.Coordinates.Lat, cand.Coordinates.Lng)
	}
	if p.OpeningHours != nil {
		detail.OpeningHours = p.OpeningHours.WeekdayDescriptions
	}
	for _, photo := range p.Photos {
		detail.PhotoRefs = append(detail.PhotoRefs, photo.Name)
	}
	for _, rev := range p.Reviews {
		detail.Reviews = append(detail.Reviews, model.Review{
			Author: rev.AuthorAttribution.DisplayName,
			Rating: rev.Rating,
			Text:   rev.Text.Text,
		})
	}
	return detail, nil
}

// attachMedia stores up to MaxPhotos references, the operator's chosen photo
// first. Media failures never fail the item.
func (e *Executor) attachMedia(ctx context.Context, entryID string, cand model.Candidate, detail *model.PlaceDetail) {
	refs := detail.PhotoRefs
	if len(refs) == 0 && cand.PhotoRef != "" {
		refs = []string{cand.PhotoRef}
	}
	if len(refs) > e.cfg.MaxPhotos {
		refs = refs[:e.cfg.MaxPhotos]
	}

	// Move the chosen photo to the front when it made the cut.
	chosen := cand.ChosenPhoto()
	for i, ref := range refs {
		if ref == chosen && i > 0 {
			ordered := make([]string, 0, len(refs))
			ordered = append(ordered, chosen)
			ordered = append(ordered, refs[:i]...)
			ordered = append(ordered, refs[i+1:]...)
			refs = ordered
			break
		}
	}

	for i, ref := range refs {
		if err := e.cfg.Inventory.CreateMedia(ctx, entryID, ref, i); err != nil {
			zap.L().Warn("failed to store media",
				zap.String("entry_id", entryID),
				zap.Int("position", i),
				zap.Error(err))
		}
	}
}
