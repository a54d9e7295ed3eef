package resample

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/model"
)

func TestResample_SameRatePassesThrough(t *testing.T) {
	m := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	})
	p := &model.Packet{
		SampleRateIn:   100,
		ChannelPitchIn: 4,
		Matrix:         m,
		Attrs:          map[string]any{},
	}

	r := New(100, 4, 2, daslog.NewTestLogger(), nil)
	out, err := r.Resample(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Space())
	assert.Equal(t, 4, out.Time())
	assert.Equal(t, 3.0, out.Matrix.At(0, 2))
}

func TestResample_TimeDecimationByTwo(t *testing.T) {
	// 1 channel, 8 samples at 200 Hz decimated to 100 Hz -> 4 samples,
	// each the mean of a consecutive pair.
	m := mat.NewDense(1, 8, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	p := &model.Packet{
		SampleRateIn:   200,
		ChannelPitchIn: 4,
		Matrix:         m,
		Attrs:          map[string]any{},
	}

	r := New(100, 4, 2, daslog.NewTestLogger(), nil)
	out, err := r.Resample(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, 4, out.Time())
	assert.InDelta(t, 1.5, out.Matrix.At(0, 0), 1e-9)
	assert.InDelta(t, 3.5, out.Matrix.At(0, 1), 1e-9)
	assert.InDelta(t, 5.5, out.Matrix.At(0, 2), 1e-9)
	assert.InDelta(t, 7.5, out.Matrix.At(0, 3), 1e-9)
	assert.Equal(t, 2, out.Attrs["down_factor_time"])
}

func TestResample_SpaceDecimationByTwo(t *testing.T) {
	// Input pitch (2) is finer than the canonical pitch (4): decimating
	// space coarsens the pitch by the target/input ratio, 4/2 = 2.
	m := mat.NewDense(4, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
	})
	p := &model.Packet{
		SampleRateIn:   100,
		ChannelPitchIn: 2,
		Matrix:         m,
		Attrs:          map[string]any{},
	}

	r := New(100, 4, 2, daslog.NewTestLogger(), nil)
	out, err := r.Resample(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, 2, out.Space())
	assert.Equal(t, 1.0, out.Matrix.At(0, 0))
	assert.Equal(t, 3.0, out.Matrix.At(1, 0))
	assert.Equal(t, 2, out.Attrs["down_factor_space"])
}

func TestResample_SpaceDecimationScenario5(t *testing.T) {
	// channel_pitch_in=2, DX=4 -> factor 2, 3334 channels down to 1667.
	const spaceIn, timeIn = 3334, 1
	data := make([]float64, spaceIn*timeIn)
	for i := range data {
		data[i] = float64(i)
	}
	m := mat.NewDense(spaceIn, timeIn, data)
	p := &model.Packet{
		SampleRateIn:   100,
		ChannelPitchIn: 2,
		Matrix:         m,
		Attrs:          map[string]any{},
	}

	r := New(100, 4, 2, daslog.NewTestLogger(), nil)
	out, err := r.Resample(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 1667, out.Space())
	assert.Equal(t, 2, out.Attrs["down_factor_space"])
}

func TestResample_FractionalFactorPassesThroughUnchanged(t *testing.T) {
	m := mat.NewDense(1, 5, []float64{1, 2, 3, 4, 5})
	p := &model.Packet{
		SampleRateIn:   150, // 150/100 = 1.5, not an integer factor
		ChannelPitchIn: 4,
		Matrix:         m,
		Attrs:          map[string]any{},
	}

	r := New(100, 4, 2, daslog.NewTestLogger(), nil)
	out, err := r.Resample(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Time())
	assert.NotContains(t, out.Attrs, "down_factor_time")
}

func TestResample_WorkerPoolMatchesSingleThreaded(t *testing.T) {
	const space, timeIn, f = 7, 16, 4
	data := make([]float64, space*timeIn)
	for i := range data {
		data[i] = float64(i)
	}
	m := mat.NewDense(space, timeIn, data)
	p := &model.Packet{SampleRateIn: 400, ChannelPitchIn: 4, Matrix: m, Attrs: map[string]any{}}

	single := New(100, 4, 1, daslog.NewTestLogger(), nil)
	pooled := New(100, 4, 3, daslog.NewTestLogger(), nil)

	outSingle, err := single.Resample(context.Background(), p)
	require.NoError(t, err)
	outPooled, err := pooled.Resample(context.Background(), p)
	require.NoError(t, err)

	rows, cols := outSingle.Matrix.Dims()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			assert.Equal(t, outSingle.Matrix.At(row, col), outPooled.Matrix.At(row, col))
		}
	}
}
