package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

type fakeAddon struct {
	names []string
	err   error
}

func (f *fakeAddon) Ping(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"status":"ok"}`), f.err
}

func (f *fakeAddon) Debug(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"version":"1.2.3"}`), f.err
}

func (f *fakeAddon) AllDataRaw(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"accounts":[]}`), f.err
}

func (f *fakeAddon) AllData(context.Context) (*core.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Snapshot{Valid: true}, nil
}

func (f *fakeAddon) AddRewardsCategory(_ context.Context, name string) (json.RawMessage, error) {
	f.names = append(f.names, "category:"+name)
	return json.RawMessage(`{"success":true}`), f.err
}

func (f *fakeAddon) AddRewardsPayee(_ context.Context, name string) (json.RawMessage, error) {
	f.names = append(f.names, "payee:"+name)
	return json.RawMessage(`{"success":true}`), f.err
}

type fakeHistory struct {
	limit int
}

func (f *fakeHistory) History(_ context.Context, entityID string, limit int) ([]storage.HistoryPoint, error) {
	f.limit = limit
	return []storage.HistoryPoint{
		{EntityID: entityID, State: "1234.56", TakenAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
	}, nil
}

func testDeps(api *fakeAddon, hist *fakeHistory) Deps {
	return Deps{
		Addon: func(context.Context) (AddonAPI, error) { return api, nil },
		History: func(context.Context) (HistoryAPI, func() error, error) {
			return hist, func() error { return nil }, nil
		},
		Sensors: func() *sensor.Builder {
			return sensor.NewBuilder(sensor.Options{Location: time.UTC, Logger: log.Discard()})
		},
	}
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPingPrintsIndentedJSON(t *testing.T) {
	out, err := run(t, testDeps(&fakeAddon{}, nil), "ping")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"status\": \"ok\"\n}\n", out)
}

func TestAddonErrorIsReturned(t *testing.T) {
	_, err := run(t, testDeps(&fakeAddon{err: errors.New("boom")}, nil), "data")
	assert.EqualError(t, err, "boom")
}

func TestSensorsTable(t *testing.T) {
	out, err := run(t, testDeps(&fakeAddon{}, nil), "sensors")
	require.NoError(t, err)
	assert.Contains(t, out, "ENTITY ID")
	assert.Contains(t, out, sensor.SummaryEntityID("analytics_net_worth"))
}

func TestSensorsJSON(t *testing.T) {
	out, err := run(t, testDeps(&fakeAddon{}, nil), "sensors", "--json")
	require.NoError(t, err)

	var states []sensor.State
	require.NoError(t, json.Unmarshal([]byte(out), &states))
	assert.NotEmpty(t, states)
}

func TestRewardsCommands(t *testing.T) {
	api := &fakeAddon{}
	_, err := run(t, testDeps(api, nil), "rewards", "add-category", "Groceries")
	require.NoError(t, err)
	_, err = run(t, testDeps(api, nil), "rewards", "add-payee", "Costco")
	require.NoError(t, err)
	assert.Equal(t, []string{"category:Groceries", "payee:Costco"}, api.names)

	_, err = run(t, testDeps(api, nil), "rewards", "add-payee")
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	hist := &fakeHistory{}
	out, err := run(t, testDeps(&fakeAddon{}, hist), "history", "sensor.x", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, hist.limit)
	assert.Contains(t, out, "2025-03-10 12:00:00Z")
	assert.Contains(t, out, "1234.56")

	_, err = run(t, testDeps(&fakeAddon{}, hist), "history", "sensor.x", "--limit", "0")
	assert.ErrorContains(t, err, "--limit")
}

func TestJobCommands(t *testing.T) {
	deps := testDeps(&fakeAddon{}, nil)
	_, err := run(t, deps, "export")
	assert.ErrorContains(t, err, "not available")

	var ran bool
	deps.Prune = func(context.Context) error { ran = true; return nil }
	out, err := run(t, deps, "prune")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "prune done\n", out)
}

func TestStatusCommand(t *testing.T) {
	deps := testDeps(&fakeAddon{}, nil)
	_, err := run(t, deps, "status")
	assert.ErrorContains(t, err, "not available")

	tests := []struct {
		version uint
		dirty   bool
		want    string
	}{
		{0, false, "schema: not migrated\n"},
		{1, false, "schema: version 1\n"},
		{2, true, "schema: version 2 (dirty, a migration failed)\n"},
	}
	for _, tt := range tests {
		deps.Schema = func() (uint, bool, error) { return tt.version, tt.dirty, nil }
		out, err := run(t, deps, "status")
		require.NoError(t, err)
		assert.Equal(t, tt.want, out)
	}

	deps.Schema = func() (uint, bool, error) { return 0, false, errors.New("database is locked") }
	_, err = run(t, deps, "status")
	assert.EqualError(t, err, "database is locked")
}
