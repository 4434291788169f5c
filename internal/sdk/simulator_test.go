package sdk

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_RecordsCalls(t *testing.T) {
	sim := NewSimulator()

	require.NoError(t, sim.Start())
	require.NoError(t, sim.SetAlign(AlignMiddle))
	require.NoError(t, sim.AddString("hello"))
	require.NoError(t, sim.WalkPaper(2))

	calls := sim.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, Call{Op: OpSetAlign, Arg: AlignMiddle}, calls[1])
	assert.Equal(t, "walkPaper(2)", calls[3].String())
	assert.True(t, sim.Started())
	assert.Equal(t, 1, sim.CallCount(OpAddString))
}

func TestSimulator_FailOnNthCall(t *testing.T) {
	sim := NewSimulator().FailOn(OpPrintString, 2, ErrOverHeat)

	assert.NoError(t, sim.PrintString())
	assert.True(t, errors.Is(sim.PrintString(), ErrOverHeat))
	assert.NoError(t, sim.PrintString())
}

func TestSimulator_Status(t *testing.T) {
	sim := NewSimulator()

	status, err := sim.CheckStatus()
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	sim.SetStatus(StatusNoPaper)
	status, _ = sim.CheckStatus()
	assert.Equal(t, StatusNoPaper, status)
}

func TestSimulator_NilLogo(t *testing.T) {
	sim := NewSimulator()

	err := sim.PrintLogo(nil)
	assert.Equal(t, KindUnclassified, KindOf(err))
}

func TestSimulator_Preview(t *testing.T) {
	dir := t.TempDir()
	sim := NewSimulator().EnablePreview(dir, 384, "")

	require.NoError(t, sim.Start())
	require.NoError(t, sim.AddString("Receipt"))
	require.NoError(t, sim.PrintString())
	require.NoError(t, sim.PrintLogo(image.NewGray(image.Rect(0, 0, 100, 40))))
	require.NoError(t, sim.WalkPaper(2))
	require.NoError(t, sim.Stop())

	info, err := os.Stat(filepath.Join(dir, "roll-1.png"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// an empty session writes nothing
	require.NoError(t, sim.Start())
	require.NoError(t, sim.Stop())
	_, err = os.Stat(filepath.Join(dir, fmt.Sprintf("roll-%d.png", 2)))
	assert.True(t, os.IsNotExist(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNoPaper, KindOf(NewError(KindNoPaper, "print", nil)))
	assert.Equal(t, KindOverHeat, KindOf(fmt.Errorf("job: %w", NewError(KindOverHeat, "print", nil))))
	assert.Equal(t, KindUnclassified, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnclassified, KindOf(nil))
}

func TestErrorIs(t *testing.T) {
	err := NewError(KindDeviceTransmitData, "write", errors.New("broken pipe"))

	assert.True(t, errors.Is(err, ErrDeviceTransmitData))
	assert.False(t, errors.Is(err, ErrNoPaper))
	assert.Equal(t, "write: device_transmit_data: broken pipe", err.Error())
	assert.Equal(t, "no_paper", ErrNoPaper.Error())
}
