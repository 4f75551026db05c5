// Package roster runs the guild roster update: it fetches the roster and
// per-character data from Battle.net, identifies alts, builds the
// consolidated dashboard and persists every table.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/groster/groster/internal/alts"
	"github.com/groster/groster/internal/model"
	"github.com/groster/groster/internal/report"
	"github.com/groster/groster/internal/store"
	"github.com/groster/groster/pkg/blizzard"
)

// Options tunes the roster service.
type Options struct {
	// Concurrency bounds in-flight character fetches.
	Concurrency int
	// Location renders last-login times. Defaults to UTC.
	Location *time.Location
	// RankOverrides rename the default guild ranks.
	RankOverrides []model.Ref
	// XLSXPath, when set, receives an xlsx copy of the dashboard.
	XLSXPath string
}

// Service runs roster updates for a guild.
type Service struct {
	client blizzard.Client
	store  store.Store
	engine *alts.Engine
	opts   Options
	now    func() time.Time
}

// NewService creates a roster service.
func NewService(client blizzard.Client, st store.Store, engine *alts.Engine, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 50
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{client: client, store: st, engine: engine, opts: opts, now: time.Now}
}

// Result is the outcome of an update.
type Result struct {
	RunID     string
	Guild     model.GuildKey
	Summary   report.Summary
	Alts      []model.AltRecord
	Dashboard []model.DashboardRow
}

// Update refreshes every table of the guild and records the run.
func (s *Service) Update(ctx context.Context, key model.GuildKey) (*Result, error) {
	start := s.now()
	run, err := s.store.CreateRun(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "roster: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.Stringer("guild", key))
	log.Info("roster: update started")

	res, err := s.update(ctx, key)
	var stats *model.RunStats
	if res != nil {
		res.RunID = run.ID
		res.Summary.Duration = s.now().Sub(start)
		stats = &model.RunStats{
			Members:    res.Summary.Members,
			Characters: res.Summary.Characters,
			Alts:       res.Summary.Alts,
			Mains:      res.Summary.Mains,
			Failed:     res.Summary.Failed,
			Duration:   res.Summary.Duration.Seconds(),
		}
	}

	if ferr := s.store.FinishRun(context.WithoutCancel(ctx), run.ID, stats, err); ferr != nil {
		log.Warn("roster: failed to record run result", zap.Error(ferr))
	}
	if err != nil {
		log.Error("roster: update failed", zap.Error(err))
		return nil, err
	}

	log.Info("roster: update complete",
		zap.Int("members", res.Summary.Members),
		zap.Int("alts", res.Summary.Alts),
		zap.Int("mains", res.Summary.Mains),
		zap.Duration("elapsed", res.Summary.Duration),
	)
	return res, nil
}

func (s *Service) update(ctx context.Context, key model.GuildKey) (*Result, error) {
	ranks, err := s.guildRanks(ctx, key)
	if err != nil {
		return nil, err
	}
	classes, err := s.referenceTable(ctx, store.TableClasses, s.client.PlayableClasses)
	if err != nil {
		return nil, err
	}
	races, err := s.referenceTable(ctx, store.TableRaces, s.client.PlayableRaces)
	if err != nil {
		return nil, err
	}

	roster, err := s.client.GuildRoster(ctx, key.Realm, key.Guild)
	if err != nil {
		return nil, eris.Wrap(err, "roster: fetch guild roster")
	}
	if len(roster.Members) == 0 {
		return nil, eris.Errorf("roster: guild %s has no members", key)
	}
	s.cacheRoster(ctx, key, roster.Raw)
	members := roster.Members

	profiles, failedProfiles, err := s.fetchProfiles(ctx, key, members)
	if err != nil {
		return nil, err
	}
	details := BuildDetails(members, profiles, s.opts.Location)
	zap.L().Info("roster: processed member details",
		zap.Int("details", len(details)),
		zap.Int("members", len(members)),
		zap.Int("failed", failedProfiles),
	)
	if err := s.store.SaveTable(ctx, key, store.TableRoster, details); err != nil {
		return nil, eris.Wrap(err, "roster: save details")
	}

	links := BuildLinks(key.Region, members)
	if err := s.store.SaveTable(ctx, key, store.TableLinks, links); err != nil {
		return nil, eris.Wrap(err, "roster: save links")
	}

	collected, err := s.Collect(ctx, key, members)
	if err != nil {
		return nil, err
	}
	records := s.engine.Identify(collected.Profiles)
	if len(records) == 0 {
		return nil, eris.New("roster: alt identification produced no records")
	}
	if err := s.store.SaveTable(ctx, key, store.TableAlts, records); err != nil {
		return nil, eris.Wrap(err, "roster: save alts")
	}
	if err := s.store.SaveTable(ctx, key, store.TableAchievements, collected.Achievements); err != nil {
		return nil, eris.Wrap(err, "roster: save achievements")
	}

	dashboard, err := s.writeDashboard(ctx, key, DashboardInput{
		Roster:       details,
		Links:        links,
		Alts:         records,
		Achievements: collected.Achievements,
		Classes:      classes,
		Races:        races,
		Ranks:        ranks,
	})
	if err != nil {
		return nil, err
	}

	sum := alts.Summarize(records)
	return &Result{
		Guild: key,
		Summary: report.Summary{
			Members:    len(members),
			Characters: sum.Characters,
			Alts:       sum.Alts,
			Mains:      sum.Mains,
			Failed:     collected.Failed + failedProfiles,
		},
		Alts:      records,
		Dashboard: dashboard,
	}, nil
}

func (s *Service) writeDashboard(ctx context.Context, key model.GuildKey, in DashboardInput) ([]model.DashboardRow, error) {
	dashboard := BuildDashboard(in)
	if err := s.store.SaveTable(ctx, key, store.TableDashboard, dashboard); err != nil {
		return nil, eris.Wrap(err, "roster: save dashboard")
	}
	zap.L().Info("roster: dashboard written", zap.Int("rows", len(dashboard)))

	if s.opts.XLSXPath != "" {
		if err := report.WriteDashboardXLSX(s.opts.XLSXPath, dashboard); err != nil {
			return nil, eris.Wrap(err, "roster: export dashboard")
		}
		zap.L().Info("roster: dashboard exported", zap.String("path", s.opts.XLSXPath))
	}
	return dashboard, nil
}

// guildRanks returns the stored rank table of the guild, seeding it with
// DefaultRanks on first use. Configured overrides are applied on top.
func (s *Service) guildRanks(ctx context.Context, key model.GuildKey) ([]model.Ref, error) {
	var ranks []model.Ref
	if _, err := s.store.LoadTable(ctx, key, store.TableRanks, &ranks); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "roster: load ranks")
	}

	seed := len(ranks) == 0
	if seed {
		zap.L().Info("roster: no guild ranks stored, using defaults")
		ranks = DefaultRanks
	}
	if len(s.opts.RankOverrides) > 0 {
		ranks = ApplyRankOverrides(ranks, s.opts.RankOverrides)
	}
	if seed || len(s.opts.RankOverrides) > 0 {
		if err := s.store.SaveTable(ctx, key, store.TableRanks, ranks); err != nil {
			return nil, eris.Wrap(err, "roster: save ranks")
		}
	}
	return ranks, nil
}

// referenceTable returns a stored game-data table, fetching and storing it
// when missing.
func (s *Service) referenceTable(ctx context.Context, table store.Table, fetch func(context.Context) ([]blizzard.Ref, error)) ([]model.Ref, error) {
	var refs []model.Ref
	_, err := s.store.LoadTable(ctx, model.GuildKey{}, table, &refs)
	switch {
	case err == nil && len(refs) > 0:
		return refs, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, eris.Wrapf(err, "roster: load %s", table)
	}

	zap.L().Info("roster: fetching reference table", zap.String("table", string(table)))
	fetched, err := fetch(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: fetch %s", table)
	}
	if len(fetched) == 0 {
		return nil, eris.Errorf("roster: no %s returned", table)
	}
	refs = make([]model.Ref, 0, len(fetched))
	for _, r := range fetched {
		refs = append(refs, model.Ref{ID: r.ID, Name: r.Name})
	}
	if err := s.store.SaveTable(ctx, model.GuildKey{}, table, refs); err != nil {
		return nil, eris.Wrapf(err, "roster: save %s", table)
	}
	return refs, nil
}

func rosterRef(key model.GuildKey) store.PayloadRef {
	return store.PayloadRef{Region: key.Region, Realm: key.Realm, Name: key.Guild, Kind: model.PayloadRoster}
}

func (s *Service) cacheRoster(ctx context.Context, key model.GuildKey, raw []byte) {
	if len(raw) == 0 {
		return
	}
	if err := s.store.SavePayload(ctx, rosterRef(key), raw); err != nil {
		zap.L().Warn("roster: failed to cache guild roster", zap.Error(err))
	}
}

// Recompute re-runs alt identification from cached payloads with cfg,
// without calling Battle.net. When save is set the alts table and the
// dashboard are rewritten.
func (s *Service) Recompute(ctx context.Context, key model.GuildKey, cfg alts.Config, save bool) (*Result, error) {
	start := s.now()
	engine, err := alts.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.LoadPayload(ctx, rosterRef(key))
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(err, "roster: no cached roster for %s, run update first", key)
	}
	if err != nil {
		return nil, eris.Wrap(err, "roster: load cached roster")
	}
	var roster blizzard.GuildRoster
	if err := json.Unmarshal(raw, &roster); err != nil {
		return nil, eris.Wrap(err, "roster: decode cached roster")
	}

	members := validMembers(roster.Members)
	profiles := make([]alts.Profile, 0, len(members))
	failed := 0
	for _, m := range members {
		p := s.cachedProfile(ctx, key, m.Character, engine.Config())
		if !p.Fetched {
			failed++
		}
		profiles = append(profiles, p)
	}

	records := engine.Identify(profiles)
	if len(records) == 0 {
		return nil, eris.New("roster: alt identification produced no records")
	}

	res := &Result{Guild: key, Alts: records}
	if save {
		if err := s.store.SaveTable(ctx, key, store.TableAlts, records); err != nil {
			return nil, eris.Wrap(err, "roster: save alts")
		}
		in, err := s.loadDashboardInput(ctx, key)
		if err != nil {
			return nil, err
		}
		in.Alts = records
		if res.Dashboard, err = s.writeDashboard(ctx, key, in); err != nil {
			return nil, err
		}
	}

	sum := alts.Summarize(records)
	res.Summary = report.Summary{
		Members:    len(roster.Members),
		Characters: sum.Characters,
		Alts:       sum.Alts,
		Mains:      sum.Mains,
		Failed:     failed,
		Duration:   s.now().Sub(start),
	}
	return res, nil
}

// cachedProfile builds an alt profile from stored payloads. A missing or
// unreadable achievements payload yields a not-fetched profile.
func (s *Service) cachedProfile(ctx context.Context, key model.GuildKey, c blizzard.RosterCharacter, cfg alts.Config) alts.Profile {
	var ach *blizzard.Achievements
	var pets, mounts *blizzard.Collection

	if err := s.loadCached(ctx, key, c, model.PayloadAchievements, &ach); err != nil {
		ach = nil
		logFetchError(zap.L().With(zap.String("character", c.Name)), "cached achievements", err)
	}
	_ = s.loadCached(ctx, key, c, model.PayloadPets, &pets)
	_ = s.loadCached(ctx, key, c, model.PayloadMounts, &mounts)

	return buildProfile(c, ach, pets, mounts, cfg)
}

func (s *Service) loadCached(ctx context.Context, key model.GuildKey, c blizzard.RosterCharacter, kind model.PayloadKind, out any) error {
	ref := store.PayloadRef{Region: key.Region, Realm: c.Realm.Slug, Name: c.Name, Kind: kind}
	raw, err := s.store.LoadPayload(ctx, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrapf(err, "roster: decode cached %s of %s", kind, c.Name)
	}
	return nil
}

// loadDashboardInput loads every stored table the dashboard is built from.
func (s *Service) loadDashboardInput(ctx context.Context, key model.GuildKey) (DashboardInput, error) {
	var in DashboardInput
	tables := []struct {
		table store.Table
		out   any
	}{
		{store.TableRoster, &in.Roster},
		{store.TableLinks, &in.Links},
		{store.TableAchievements, &in.Achievements},
		{store.TableClasses, &in.Classes},
		{store.TableRaces, &in.Races},
		{store.TableRanks, &in.Ranks},
	}
	for _, t := range tables {
		if _, err := s.store.LoadTable(ctx, key, t.table, t.out); err != nil {
			return in, eris.Wrapf(err, "roster: load %s", t.table)
		}
	}
	return in, nil
}
