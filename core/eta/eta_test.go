package eta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ers/core/geo"
	"github.com/kilianp07/ers/core/model"
)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) Duration(ctx context.Context, from, to model.Point) (time.Duration, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(time.Duration), args.Error(1)
}

type slowProvider struct{}

func (slowProvider) Duration(ctx context.Context, _, _ model.Point) (time.Duration, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

var (
	a = model.Point{Lat: 22.30, Lng: 73.18}
	b = model.Point{Lat: 22.35, Lng: 73.18}
)

func TestEstimatorWithoutProviderUsesStraightLine(t *testing.T) {
	var e *Estimator
	est := e.Estimate(context.Background(), a, b)
	require.NotNil(t, est.Seconds)
	assert.Equal(t, SourceFallback, est.Source)
	assert.InDelta(t, geo.ETASeconds(geo.DistanceKm(a, b), geo.DefaultSpeedKmh), *est.Seconds, 1e-9)

	est = (&Estimator{AvgSpeedKmh: 80}).Estimate(context.Background(), a, b)
	assert.InDelta(t, geo.ETASeconds(geo.DistanceKm(a, b), 80), *est.Seconds, 1e-9)
}

func TestEstimatorProviderSuccess(t *testing.T) {
	p := &mockProvider{}
	p.On("Duration", mock.Anything, a, b).Return(90*time.Second, nil)
	est := (&Estimator{Provider: p}).Estimate(context.Background(), a, b)
	require.NotNil(t, est.Seconds)
	assert.Equal(t, 90.0, *est.Seconds)
	assert.Equal(t, SourceProvider, est.Source)
	p.AssertExpectations(t)
}

func TestEstimatorProviderFailureIsSoft(t *testing.T) {
	p := &mockProvider{}
	p.On("Duration", mock.Anything, a, b).Return(time.Duration(0), errors.New("503"))
	var failures int
	e := &Estimator{Provider: p, OnFailure: func(error) { failures++ }}
	est := e.Estimate(context.Background(), a, b)
	assert.Nil(t, est.Seconds)
	assert.Equal(t, model.KindExternalService, model.KindOf(est.Err))
	assert.Equal(t, 1, failures)

	e.FallbackOnError = true
	est = e.Estimate(context.Background(), a, b)
	require.NotNil(t, est.Seconds)
	assert.Equal(t, SourceFallback, est.Source)
}

func TestEstimatorTimeout(t *testing.T) {
	e := &Estimator{Provider: slowProvider{}, Timeout: 10 * time.Millisecond}
	start := time.Now()
	est := e.Estimate(context.Background(), a, b)
	assert.Nil(t, est.Seconds)
	assert.ErrorIs(t, est.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEstimateAdd(t *testing.T) {
	one, two := 1.0, 2.0
	sum := Estimate{Seconds: &one, Source: SourceProvider}.Add(Estimate{Seconds: &two, Source: SourceProvider})
	require.NotNil(t, sum.Seconds)
	assert.Equal(t, 3.0, *sum.Seconds)
	assert.Equal(t, SourceProvider, sum.Source)

	empty := Estimate{Seconds: &one}.Add(Estimate{Source: SourceNone})
	assert.Nil(t, empty.Seconds)
}
