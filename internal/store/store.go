// Package store persists guild tables, raw character payloads and update
// runs. Three drivers share one interface: csv files, SQLite and Postgres.
package store

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/groster/groster/internal/model"
)

// ErrNotFound is returned when a table, payload or run does not exist.
var ErrNotFound = eris.New("store: not found")

// Table names one persisted guild table.
type Table string

const (
	TableClasses      Table = "classes"
	TableRaces        Table = "races"
	TableRanks        Table = "ranks"
	TableRoster       Table = "roster"
	TableLinks        Table = "links"
	TableAlts         Table = "alts"
	TableAchievements Table = "achievements"
	TableDashboard    Table = "dashboard"
)

// Global reports whether the table is shared by every guild.
func (t Table) Global() bool {
	return t == TableClasses || t == TableRaces
}

// PayloadRef identifies one cached raw API payload of a character.
type PayloadRef struct {
	Region string
	Realm  string
	Name   string
	Kind   model.PayloadKind
}

func (r PayloadRef) normalized() PayloadRef {
	r.Name = strings.ToLower(r.Name)
	r.Realm = strings.ToLower(r.Realm)
	return r
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Guild  *model.GuildKey
	Status model.RunStatus
	Limit  int
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

func (f RunFilter) match(r model.Run) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return f.Guild == nil || *f.Guild == r.Guild
}

// Store defines the persistence interface of the roster service.
//
// SaveTable replaces a whole table with rows, which must be a slice of
// structs. LoadTable decodes the table into out, a pointer to such a slice,
// and returns when the table was last written.
type Store interface {
	SaveTable(ctx context.Context, key model.GuildKey, table Table, rows any) error
	LoadTable(ctx context.Context, key model.GuildKey, table Table, out any) (time.Time, error)

	SavePayload(ctx context.Context, ref PayloadRef, data []byte) error
	LoadPayload(ctx context.Context, ref PayloadRef) ([]byte, error)

	CreateRun(ctx context.Context, key model.GuildKey) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, stats *model.RunStats, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// tableKey blanks the guild key of global tables.
func tableKey(key model.GuildKey, table Table) model.GuildKey {
	if table.Global() {
		return model.GuildKey{}
	}
	return key
}

func checkRows(rows any) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return eris.Errorf("store: rows must be a slice, got %T", rows)
	}
	return nil
}

func finishState(runErr error) (model.RunStatus, string) {
	if runErr != nil {
		return model.RunStatusFailed, runErr.Error()
	}
	return model.RunStatusComplete, ""
}
