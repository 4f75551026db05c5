package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groster/groster/internal/model"
)

func TestCSVStore_FileLayout(t *testing.T) {
	s := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTable(ctx, testGuild, TableDashboard, []model.DashboardRow{
		{Name: "Ayla", Realm: "terokkar", Level: 80, Class: "Mage", Alt: false, Main: "Ayla", LastLogin: "2024-01-02 03:04:05"},
	}))
	require.NoError(t, s.SaveTable(ctx, testGuild, TableRaces, []model.Ref{{ID: 2, Name: "Orc"}}))
	require.NoError(t, s.SavePayload(ctx, PayloadRef{Region: "eu", Realm: "terokkar", Name: "Ayla", Kind: model.PayloadPets}, []byte(`{}`)))

	dash, err := os.ReadFile(filepath.Join(s.dir, "eu-terokkar-darq-side-of-the-moon-dashboard.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(dash)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name,Realm,Level,Class,Race,Rank,AQ,AP,Alt?,Main,iLvl,Last Login,Raider.io,Armory,Logs", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Ayla,terokkar,80,Mage,"))

	assert.FileExists(t, filepath.Join(s.dir, "races.csv"))
	assert.FileExists(t, filepath.Join(s.dir, "eu", "terokkar", "ayla", "pets.json"))
}

func TestCSVStore_EmptyTableWritesHeader(t *testing.T) {
	s := newTestCSVStore(t)
	require.NoError(t, s.SaveTable(context.Background(), testGuild, TableAlts, []model.AltRecord(nil)))

	data, err := os.ReadFile(s.TablePath(testGuild, TableAlts))
	require.NoError(t, err)
	assert.Equal(t, "id,name,alt,main\n", string(data))
}

func TestCSVStore_RunsNewestFirst(t *testing.T) {
	s := newTestCSVStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, testGuild)
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, testGuild)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, first.ID, &model.RunStats{Members: 1}, nil))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, model.RunStatusComplete, runs[1].Status)
}

func TestNewCSV_RequiresDir(t *testing.T) {
	_, err := NewCSV("")
	require.Error(t, err)
}
