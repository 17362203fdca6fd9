package display

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/model"
)

type recordingDevice struct {
	frames [][Rows]string
	ind    []Indicators
}

func (d *recordingDevice) Render(lines [Rows]string, ind Indicators) error {
	d.frames = append(d.frames, lines)
	d.ind = append(d.ind, ind)
	return nil
}

func sampleRecord() model.DailyRecord {
	rec := model.DailyRecord{Date: "2022-01-10"}
	rec.Cases.New = model.SomeInt(141472)
	rec.Cases.Total = model.SomeInt(14496224)
	rec.Cases.Corrections = model.SomeInt(-12)
	rec.Deaths.New = model.SomeInt(77)
	rec.Deaths.Total = model.SomeInt(150230)
	return rec
}

func TestRecordLines(t *testing.T) {
	lines := RecordLines(sampleRecord())
	assert.Equal(t, "  Cases   | Deaths  ", lines[0])
	assert.Equal(t, "   141,472|       77", lines[1])
	assert.Equal(t, "14,496,224|  150,230", lines[2])
	assert.Equal(t, "       -12|     None", lines[3])
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), Cols)
	}
}

func TestPanel_ShowRecordPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LastOutput.txt")
	dev := &recordingDevice{}
	p := NewPanel(dev, path)

	require.NoError(t, p.ShowRecord(sampleRecord()))
	st := p.Snapshot()
	assert.Equal(t, "2022-01-10", st.Date)
	assert.Equal(t, Indicators{New: true}, st.Indicators)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("2022-01-10,false\n  Cases   | Deaths  \n")))

	restored := NewPanel(&recordingDevice{}, path)
	require.NoError(t, restored.Reload(func() (model.DailyRecord, error) {
		t.Fatal("store must not be consulted when the last output exists")
		return model.DailyRecord{}, nil
	}))
	assert.Equal(t, st.Lines, restored.Snapshot().Lines)
	assert.Equal(t, "2022-01-10", restored.Date())
}

func TestPanel_ReloadFallsBackToStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LastOutput.txt")
	p := NewPanel(&recordingDevice{}, path)
	require.NoError(t, p.Reload(func() (model.DailyRecord, error) { return sampleRecord(), nil }))
	assert.Equal(t, RecordLines(sampleRecord()), p.Snapshot().Lines)

	_, err := os.Stat(path)
	assert.NoError(t, err, "fallback output is persisted")

	empty := NewPanel(&recordingDevice{}, filepath.Join(t.TempDir(), "none.txt"))
	require.NoError(t, empty.Reload(func() (model.DailyRecord, error) { return model.DailyRecord{}, errors.New("empty") }))
	assert.Equal(t, "    No previous     ", empty.Snapshot().Lines[2])
}

func TestPanel_NoDataAndIndicators(t *testing.T) {
	dev := &recordingDevice{}
	p := NewPanel(dev, "")

	require.NoError(t, p.Searching())
	assert.True(t, p.Snapshot().Indicators.Old)

	require.NoError(t, p.ShowNoData())
	st := p.Snapshot()
	assert.Equal(t, "1970-01-01", st.Date)
	assert.Equal(t, "         NO         ", st.Lines[1])
	assert.Equal(t, Indicators{Error: true}, st.Indicators)

	require.NoError(t, p.SetError(false))
	require.NoError(t, p.NewDay())
	assert.Equal(t, Indicators{}, p.Snapshot().Indicators)
	assert.Len(t, dev.frames, 4)
}

func TestWriterDevice(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriterDevice{W: &buf}.Render(RecordLines(sampleRecord()), Indicators{New: true}))
	assert.Contains(t, buf.String(), "|   141,472|       77|")
	assert.Contains(t, buf.String(), "ERR:off OLD:off NEW:on")
}
