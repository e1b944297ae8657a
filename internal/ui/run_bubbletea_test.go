package ui

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "agcred/internal/core"
	"agcred/internal/logging"
	"agcred/internal/store"
)

func testCtx() context.Context {
	return logging.NewContext(context.Background(), slog.New(slog.DiscardHandler))
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(model)
	}
	return m
}

func seed(t *testing.T, dir string, mappings core.Mappings) {
	t.Helper()
	cfg := store.New(dir)
	for p, id := range mappings {
		cfg.SetIntegrationID(p, id)
	}
	require.NoError(t, cfg.Save(testCtx()))
}

func TestNewModel_LoadsSortedProviders(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, core.Mappings{"hubspot": "h-id", "google": "g-id"})

	m := newModel(testCtx(), dir)

	assert.Equal(t, []string{"google", "hubspot"}, m.providers)
	assert.Equal(t, "Loaded 2 mapping(s)", m.status)
}

func TestAddMapping_SavesImmediately(t *testing.T) {
	dir := t.TempDir()
	m := newModel(testCtx(), dir)

	m = press(t, m, "a", "google", "tab", "g-id-1234", "enter")

	assert.Equal(t, modeTable, m.m)
	assert.Equal(t, "added google", m.status)
	id, ok := store.IntegrationIDForAgent(testCtx(), dir, "google")
	assert.True(t, ok)
	assert.Equal(t, "g-id-1234", id)
}

func TestAddMapping_RejectsBlankAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, core.Mappings{"google": "g-id"})
	m := newModel(testCtx(), dir)

	m = press(t, m, "a", "tab", "x", "enter")
	assert.Equal(t, modeNew, m.m)
	assert.Equal(t, "provider is required", m.formErr)

	m = press(t, m, "esc", "a", "google", "tab", "other", "enter")
	assert.Equal(t, modeNew, m.m)
	assert.Contains(t, m.formErr, "already mapped")

	id, _ := store.IntegrationIDForAgent(testCtx(), dir, "google")
	assert.Equal(t, "g-id", id)
}

func TestEditMapping(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, core.Mappings{"google": "old-id", "hubspot": "h-id"})
	m := newModel(testCtx(), dir)

	m = press(t, m, "down", "e")
	require.Equal(t, modeEdit, m.m)
	assert.Equal(t, "hubspot", m.target)
	assert.Equal(t, "h-id", m.idIn.Value())

	m.idIn.SetValue("new-h-id")
	m = press(t, m, "enter")

	assert.Equal(t, "updated hubspot", m.status)
	assert.Equal(t, 1, m.index)
	id, _ := store.IntegrationIDForAgent(testCtx(), dir, "hubspot")
	assert.Equal(t, "new-h-id", id)
}

func TestDeleteMapping_Confirm(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, core.Mappings{"google": "g-id", "hubspot": "h-id"})
	m := newModel(testCtx(), dir)

	m = press(t, m, "d", "n")
	assert.Equal(t, modeTable, m.m)
	assert.True(t, store.Load(testCtx(), dir).HasMapping("google"))

	m = press(t, m, "d", "y")
	assert.Equal(t, "deleted google", m.status)
	assert.Equal(t, []string{"hubspot"}, m.providers)
	assert.False(t, store.Load(testCtx(), dir).HasMapping("google"))
}

func TestDeleteMapping_Empty(t *testing.T) {
	m := newModel(testCtx(), t.TempDir())

	m = press(t, m, "d")

	assert.Equal(t, modeTable, m.m)
	assert.Equal(t, "cannot delete: no mappings", m.status)
}

func TestAddMapping_SaveFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	m := newModel(testCtx(), dir)

	m = press(t, m, "a", "google", "tab", "g-id", "enter")

	assert.Equal(t, modeNew, m.m)
	assert.Contains(t, m.formErr, "save failed")
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestView_MasksUntilRevealed(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, core.Mappings{"google": "secret-integration-9876"})
	m := newModel(testCtx(), dir)

	assert.Contains(t, m.View(), "****9876")
	assert.NotContains(t, m.View(), "secret-integration-9876")

	m = press(t, m, "v")
	assert.Contains(t, m.View(), "secret-integration-9876")
}

func TestPathAndQuit(t *testing.T) {
	dir := t.TempDir()
	m := newModel(testCtx(), dir)

	m = press(t, m, "p")
	assert.Equal(t, "Config file: "+filepath.Join(dir, core.ConfigFilename), m.status)

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestReload_PicksUpExternalChanges(t *testing.T) {
	dir := t.TempDir()
	m := newModel(testCtx(), dir)
	require.Empty(t, m.providers)

	require.NoError(t, store.SetIntegrationIDForAgent(testCtx(), dir, "slack", "s-id"))
	m = press(t, m, "r")

	assert.Equal(t, []string{"slack"}, m.providers)
}

func TestNewModel_CorruptFileShownInStatus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, core.ConfigFilename), []byte("not valid json"), 0o600))

	m := newModel(testCtx(), dir)

	assert.Contains(t, m.status, "load failed")
	assert.Contains(t, m.status, "saving will replace")
	assert.Contains(t, m.View(), "load failed")

	m = press(t, m, "a", "google", "tab", "g-id", "enter")
	assert.Equal(t, "added google", m.status)
	assert.NoError(t, store.Load(testCtx(), dir).LoadErr())
}

func TestAddMapping_StoresIDAsTyped(t *testing.T) {
	dir := t.TempDir()
	m := newModel(testCtx(), dir)

	m = press(t, m, "a", "google", "tab", "  padded id  ", "enter")
	m = press(t, m, "a", "hubspot", "tab", "enter")

	assert.Equal(t, modeTable, m.m)
	id, ok := store.IntegrationIDForAgent(testCtx(), dir, "google")
	assert.True(t, ok)
	assert.Equal(t, "  padded id  ", id)
	id, ok = store.IntegrationIDForAgent(testCtx(), dir, "hubspot")
	assert.True(t, ok)
	assert.Equal(t, "", id)
}
