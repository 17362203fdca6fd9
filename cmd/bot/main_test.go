package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/config"
	"CovidSentinel/internal/display"
	"CovidSentinel/internal/model"
)

type brokenDevice struct{}

func (brokenDevice) Render([display.Rows]string, display.Indicators) error {
	return errors.New("i2c bus not found")
}

func captureFatal(t *testing.T) *[]string {
	t.Helper()
	var msgs []string
	prev := fatalf
	fatalf = func(format string, args ...any) { msgs = append(msgs, fmt.Sprintf(format, args...)) }
	t.Cleanup(func() { fatalf = prev })
	return &msgs
}

func TestDie_LatchesErrorIndicatorFirst(t *testing.T) {
	msgs := captureFatal(t)
	path := filepath.Join(t.TempDir(), "LastOutput.txt")
	panel := display.NewPanel(nil, path)

	die(panel, "config validation: %v", errors.New("telegram.bot_token is required"))

	assert.Equal(t, []string{"[FATAL] config validation: telegram.bot_token is required"}, *msgs)
	assert.True(t, panel.Snapshot().Indicators.Error)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "1970-01-01,true\n"), "latched error survives a restart")
}

func TestRestorePanel_UnusableDisplayIsFatal(t *testing.T) {
	msgs := captureFatal(t)
	panel := display.NewPanel(brokenDevice{}, filepath.Join(t.TempDir(), "LastOutput.txt"))

	restorePanel(panel, func() (model.DailyRecord, error) { return model.DailyRecord{}, errors.New("empty") })

	require.Len(t, *msgs, 1)
	assert.Contains(t, (*msgs)[0], "i2c bus not found")
	assert.True(t, panel.Snapshot().Indicators.Error)
}

func TestNewPanel_PathFromConfig(t *testing.T) {
	msgs := captureFatal(t)
	cfg := &config.Config{}
	cfg.Display.LastOutputFile = filepath.Join(t.TempDir(), "out", "LastOutput.txt")

	die(newPanel(cfg), "boom")

	require.Len(t, *msgs, 1)
	_, err := os.Stat(cfg.Display.LastOutputFile)
	assert.NoError(t, err)
}
