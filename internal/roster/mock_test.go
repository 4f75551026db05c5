package roster

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/groster/groster/pkg/blizzard"
)

// --- Blizzard Mock ---

type mockBlizzardClient struct {
	mock.Mock
}

func (m *mockBlizzardClient) GuildRoster(ctx context.Context, realm, guild string) (*blizzard.GuildRoster, error) {
	args := m.Called(ctx, realm, guild)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blizzard.GuildRoster), args.Error(1)
}

func (m *mockBlizzardClient) CharacterProfile(ctx context.Context, realm, name string) (*blizzard.CharacterProfile, error) {
	args := m.Called(ctx, realm, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blizzard.CharacterProfile), args.Error(1)
}

func (m *mockBlizzardClient) CharacterAchievements(ctx context.Context, realm, name string) (*blizzard.Achievements, error) {
	args := m.Called(ctx, realm, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blizzard.Achievements), args.Error(1)
}

func (m *mockBlizzardClient) CharacterPets(ctx context.Context, realm, name string) (*blizzard.Collection, error) {
	args := m.Called(ctx, realm, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blizzard.Collection), args.Error(1)
}

func (m *mockBlizzardClient) CharacterMounts(ctx context.Context, realm, name string) (*blizzard.Collection, error) {
	args := m.Called(ctx, realm, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blizzard.Collection), args.Error(1)
}

func (m *mockBlizzardClient) PlayableClasses(ctx context.Context) ([]blizzard.Ref, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]blizzard.Ref), args.Error(1)
}

func (m *mockBlizzardClient) PlayableRaces(ctx context.Context) ([]blizzard.Ref, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]blizzard.Ref), args.Error(1)
}
