package roster

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/groster/groster/internal/alts"
	"github.com/groster/groster/internal/model"
	"github.com/groster/groster/internal/store"
	"github.com/groster/groster/pkg/blizzard"
)

// Collected is the per-character data gathered for alt identification.
type Collected struct {
	Profiles     []alts.Profile
	Achievements []model.AchievementSummary
	// Failed counts characters whose achievements could not be fetched.
	Failed int
}

// fanOut calls fn for every index in [0, n) with at most limit calls in
// flight. fn handles its own failures; only cancellation stops the batch.
func fanOut(ctx context.Context, n, limit int, fn func(ctx context.Context, i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, i)
			return nil
		})
	}
	return g.Wait()
}

// validMembers drops roster entries without a name or realm.
func validMembers(members []blizzard.GuildMember) []blizzard.GuildMember {
	out := make([]blizzard.GuildMember, 0, len(members))
	for _, m := range members {
		if validMember(m) {
			out = append(out, m)
		}
	}
	if skipped := len(members) - len(out); skipped > 0 {
		zap.L().Warn("roster: skipping members without name or realm",
			zap.Int("members", len(members)),
			zap.Int("skipped", skipped),
		)
	}
	return out
}

// Collect fetches achievements, pets and mounts of every valid member and
// builds their alt profiles in roster order. A failed fetch degrades to
// empty data for that character. Raw payloads are cached in the store.
func (s *Service) Collect(ctx context.Context, key model.GuildKey, members []blizzard.GuildMember) (*Collected, error) {
	members = validMembers(members)
	cfg := s.engine.Config()

	type result struct {
		profile alts.Profile
		summary *model.AchievementSummary
	}
	results := make([]result, len(members))
	var failed atomic.Int64

	zap.L().Info("roster: collecting fingerprints", zap.Int("characters", len(members)))

	err := fanOut(ctx, len(members), s.opts.Concurrency, func(ctx context.Context, i int) {
		c := members[i].Character
		log := zap.L().With(zap.String("character", c.Name), zap.String("realm", c.Realm.Slug))

		ach, err := s.client.CharacterAchievements(ctx, c.Realm.Slug, c.Name)
		if err != nil {
			failed.Add(1)
			logFetchError(log, "achievements", err)
		} else {
			s.cachePayload(ctx, key, c, model.PayloadAchievements, ach.Raw)
		}

		pets, err := s.client.CharacterPets(ctx, c.Realm.Slug, c.Name)
		if err != nil {
			logFetchError(log, "pets", err)
		} else {
			s.cachePayload(ctx, key, c, model.PayloadPets, pets.Raw)
		}

		mounts, err := s.client.CharacterMounts(ctx, c.Realm.Slug, c.Name)
		if err != nil {
			logFetchError(log, "mounts", err)
		} else {
			s.cachePayload(ctx, key, c, model.PayloadMounts, mounts.Raw)
		}

		results[i].profile = buildProfile(c, ach, pets, mounts, cfg)
		if ach != nil {
			results[i].summary = &model.AchievementSummary{
				ID:            c.ID,
				Name:          c.Name,
				TotalQuantity: ach.TotalQuantity,
				TotalPoints:   ach.TotalPoints,
			}
		}
	})
	if err != nil {
		return nil, eris.Wrap(err, "roster: collect")
	}

	out := &Collected{
		Profiles:     make([]alts.Profile, 0, len(results)),
		Achievements: make([]model.AchievementSummary, 0, len(results)),
		Failed:       int(failed.Load()),
	}
	for _, r := range results {
		out.Profiles = append(out.Profiles, r.profile)
		if r.summary != nil {
			out.Achievements = append(out.Achievements, *r.summary)
		}
	}

	zap.L().Info("roster: fingerprints collected",
		zap.Int("characters", len(out.Profiles)),
		zap.Int("achievement_summaries", len(out.Achievements)),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// buildProfile turns fetched payloads into an alt profile. A nil
// achievements payload marks the profile as not fetched.
func buildProfile(c blizzard.RosterCharacter, ach *blizzard.Achievements, pets, mounts *blizzard.Collection, cfg alts.Config) alts.Profile {
	p := alts.Profile{
		CharacterIdentity: model.CharacterIdentity{ID: c.ID, Name: c.Name, Realm: c.Realm.Slug},
		Pets:              alts.CountCollection(pets),
		Mounts:            alts.CountCollection(mounts),
		Timestamps:        alts.TimestampMap{},
	}
	if ach == nil {
		return p
	}

	records := make([]alts.Achievement, 0, len(ach.Achievements))
	for _, a := range ach.Achievements {
		records = append(records, alts.Achievement{ID: a.ID, CompletedAt: a.CompletedTimestamp})
	}
	if len(records) == 0 {
		zap.L().Debug("roster: no achievements found", zap.String("character", c.Name))
	}
	p.Fingerprint, p.Timestamps = alts.ExtractFingerprint(records, cfg)
	p.Fetched = true
	return p
}

// fetchProfiles fetches the profile summary of every member. The result is
// index-aligned with members; failed fetches are nil.
func (s *Service) fetchProfiles(ctx context.Context, key model.GuildKey, members []blizzard.GuildMember) ([]*blizzard.CharacterProfile, int, error) {
	profiles := make([]*blizzard.CharacterProfile, len(members))
	var failed atomic.Int64

	zap.L().Info("roster: fetching profiles", zap.Int("members", len(members)))

	err := fanOut(ctx, len(members), s.opts.Concurrency, func(ctx context.Context, i int) {
		m := members[i]
		if !validMember(m) {
			return
		}
		c := m.Character
		p, err := s.client.CharacterProfile(ctx, c.Realm.Slug, c.Name)
		if err != nil {
			failed.Add(1)
			logFetchError(zap.L().With(zap.String("character", c.Name)), "profile", err)
			return
		}
		s.cachePayload(ctx, key, c, model.PayloadProfile, p.Raw)
		profiles[i] = p
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "roster: fetch profiles")
	}
	return profiles, int(failed.Load()), nil
}

func (s *Service) cachePayload(ctx context.Context, key model.GuildKey, c blizzard.RosterCharacter, kind model.PayloadKind, raw []byte) {
	if len(raw) == 0 {
		return
	}
	ref := store.PayloadRef{Region: key.Region, Realm: c.Realm.Slug, Name: c.Name, Kind: kind}
	if err := s.store.SavePayload(ctx, ref, raw); err != nil {
		zap.L().Warn("roster: failed to cache payload",
			zap.String("character", c.Name),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func logFetchError(log *zap.Logger, what string, err error) {
	if errors.Is(err, blizzard.ErrNotFound) {
		log.Debug("roster: "+what+" not found", zap.Error(err))
		return
	}
	log.Warn("roster: failed to fetch "+what, zap.Error(err))
}
