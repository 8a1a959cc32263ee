package mcl

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/render"
	"github.com/relabs-tech/localizer/internal/wire"
)

func TestApplyMotionNoiseless(t *testing.T) {
	p := at(0, 0, 90, 0.3)

	got := p.ApplyMotion(constSampler{}, 10, 0, 0, 0)

	assert.InDelta(t, 0, got.Pose.X, 1e-9)
	assert.InDelta(t, 10, got.Pose.Y, 1e-9)
	assert.InDelta(t, 90+RotationBias, got.Pose.Heading, 1e-9)
	assert.Equal(t, 0.3, got.Weight)
}

func TestApplyMotionNoiseScalesWithMotion(t *testing.T) {
	p := at(0, 0, 0, 1)

	got := p.ApplyMotion(constSampler{gaussian: 1}, 100, 90, 0.01, 0.1)

	// one standard deviation of noise on each component
	assert.InDelta(t, 101, got.Pose.X, 1e-9)
	assert.InDelta(t, 0, got.Pose.Y, 1e-9)
	assert.InDelta(t, 99.5, got.Pose.Heading, 1e-9)
}

func TestParticleWeighClamps(t *testing.T) {
	p := at(0, 0, 0, 0.5)
	assert.Equal(t, 0.25, p.Weigh(Uniform(0.25)).Weight)
	assert.Equal(t, 1.0, p.Weigh(Uniform(3)).Weight)
	assert.Equal(t, 0.0, p.Weigh(Uniform(-1)).Weight)
	assert.Equal(t, 0.0, p.Weigh(Uniform(math.NaN())).Weight)
}

func TestParticleRoundTrip(t *testing.T) {
	p := at(12.5, -7.25, 181.5, 0.75)
	var buf bytes.Buffer
	require.NoError(t, p.Encode(wire.NewWriter(&buf)))
	require.Equal(t, 16, buf.Len())
	// weight comes first
	assert.Equal(t, []byte{0x3f, 0x40, 0x00, 0x00}, buf.Bytes()[:4])

	got, err := DecodeParticle(wire.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestSnapshotRoundTrip(t *testing.T) {
	particles := []Particle{at(1, 2, 3, 0.5), at(-4, 5.5, 270, 1), at(0, 0, 0, 0)}

	t.Run("with estimate", func(t *testing.T) {
		snap := Snapshot{Estimate: &geometry.Pose{X: 1, Y: 2, Heading: 3}, Particles: particles}
		var buf bytes.Buffer
		require.NoError(t, snap.Encode(wire.NewWriter(&buf)))
		assert.Equal(t, 12+3*16, buf.Len())

		got, err := DecodeSnapshot(wire.NewReader(&buf), len(particles))
		require.NoError(t, err)
		assert.Equal(t, snap, got)
	})

	t.Run("without estimate", func(t *testing.T) {
		snap := Snapshot{Particles: particles}
		var buf bytes.Buffer
		require.NoError(t, snap.Encode(wire.NewWriter(&buf)))
		assert.Equal(t, 4+3*16, buf.Len())

		got, err := DecodeSnapshot(wire.NewReader(&buf), len(particles))
		require.NoError(t, err)
		assert.Nil(t, got.Estimate)
		assert.Equal(t, particles, got.Particles)
	})

	t.Run("truncated", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Snapshot{Particles: particles}.Encode(wire.NewWriter(&buf)))
		buf.Truncate(buf.Len() - 3)

		_, err := DecodeSnapshot(wire.NewReader(&buf), len(particles))
		require.Error(t, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
}

func TestFilterStateSurvivesTheWire(t *testing.T) {
	s := NewSampler(7)
	oracle := Rect{Max: geometry.Point{X: 200, Y: 100}, Sampler: s}
	ps, err := NewAround(geometry.Pose{X: 23.3, Y: 19.7, Heading: -3.3}, DefaultParams(), oracle, WithSampler(s))
	require.NoError(t, err)

	roundTrip := func(t *testing.T) {
		t.Helper()
		est := ps.Estimate()
		snap := ps.Snapshot(&est)
		var buf bytes.Buffer
		require.NoError(t, snap.Encode(wire.NewWriter(&buf)))

		got, err := DecodeSnapshot(wire.NewReader(&buf), ps.Len())
		require.NoError(t, err)
		assert.Equal(t, snap, got)
		assert.Zero(t, buf.Len())
	}

	roundTrip(t)
	reading := func(p geometry.Pose) float64 { return math.Exp(-math.Hypot(p.X-40, p.Y-20) / 30) }
	for i := 0; i < 50; i++ {
		ps.ApplyMove(s.Uniform()*7.3, s.Uniform()*63-31.7)
		ps.Weigh(reading)
		roundTrip(t)
		ps.Resample()
	}

	degenerations := ps.Stats().Degenerations
	ps.Weigh(Uniform(0))
	ps.Resample()
	require.Equal(t, degenerations+1, ps.Stats().Degenerations)
	roundTrip(t)
}

func TestSetSnapshotCopiesEstimate(t *testing.T) {
	ps, _ := newTestSet(t, quietParams(2), constSampler{}, at(1, 1, 0, 1), at(2, 2, 0, 1))
	est := geometry.Pose{X: 1.5, Y: 1.5}

	snap := ps.Snapshot(&est)
	est.X = 100

	require.NotNil(t, snap.Estimate)
	assert.Equal(t, 1.5, snap.Estimate.X)
	assert.Len(t, snap.Particles, 2)
	assert.Nil(t, ps.Snapshot(nil).Estimate)
}

func TestSnapshotRender(t *testing.T) {
	c := render.NewCanvas(100, 100, 10)
	snap := Snapshot{
		Estimate:  &geometry.Pose{X: 6, Y: 5},
		Particles: []Particle{at(6, 2, 0, 1)},
	}
	snap.Render(c)

	assert.Equal(t, particleColor, c.Dst.At(45, 19))
	// estimate is drawn red over the white background
	r, g, _, _ := c.Dst.At(40, 49).RGBA()
	assert.Greater(t, r, g)
}

func TestSamplerIsReproducible(t *testing.T) {
	a, b := NewSampler(42), NewSampler(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Gaussian(), b.Gaussian())
		u := a.Uniform()
		assert.Equal(t, u, b.Uniform())
		assert.True(t, u >= 0 && u < 1)
	}
}
