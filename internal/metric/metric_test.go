/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package metric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestProvider(t *testing.T) {
	t.Run("With global provider", func(t *testing.T) {
		previous := otel.GetMeterProvider()
		global := noop.NewMeterProvider()
		otel.SetMeterProvider(global)
		t.Cleanup(func() { otel.SetMeterProvider(previous) })

		provider := NewProvider()
		assert.Equal(t, global, provider.meterProvider)
		assert.NotNil(t, provider.Meter())
	})
	t.Run("With meter provider override", func(t *testing.T) {
		custom := noop.NewMeterProvider()
		provider := NewProvider(WithMeterProvider(custom))
		assert.Equal(t, custom, provider.meterProvider)
	})
	t.Run("With nil override ignored", func(t *testing.T) {
		provider := NewProvider(WithMeterProvider(nil))
		assert.NotNil(t, provider.meterProvider)
		assert.NotNil(t, provider.Meter())
	})
}

func TestMeshMetric(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = meterProvider.Shutdown(ctx) })

	meshMetric, err := NewMeshMetric(NewProvider(WithMeterProvider(meterProvider)).Meter())
	require.NoError(t, err)

	meshMetric.RecordDelivery(ctx, RouteStream, 3*time.Millisecond)
	meshMetric.RecordDelivery(ctx, RouteStream, time.Millisecond)
	meshMetric.RecordDelivery(ctx, RouteDirect, time.Millisecond)
	meshMetric.RecordHubActivation(ctx)
	meshMetric.RecordModuleLoad(ctx)
	meshMetric.RecordModuleLoad(ctx)

	var collected metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &collected))

	sums := make(map[string]map[string]int64)
	var histogramCount uint64
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, point := range data.DataPoints {
					route, _ := point.Attributes.Value(routeKey)
					if sums[m.Name] == nil {
						sums[m.Name] = make(map[string]int64)
					}
					sums[m.Name][route.AsString()] += point.Value
				}
			case metricdata.Histogram[float64]:
				for _, point := range data.DataPoints {
					histogramCount += point.Count
				}
			}
		}
	}

	assert.EqualValues(t, 2, sums["mesh_deliveries"][RouteStream])
	assert.EqualValues(t, 1, sums["mesh_deliveries"][RouteDirect])
	assert.EqualValues(t, 1, sums["mesh_hub_activations"][""])
	assert.EqualValues(t, 2, sums["mesh_module_loads"][""])
	assert.EqualValues(t, 3, histogramCount)
}

func TestNilMeshMetric(t *testing.T) {
	var meshMetric *MeshMetric
	meshMetric.RecordDelivery(context.Background(), RouteFailed, time.Millisecond)
	meshMetric.RecordHubActivation(context.Background())
	meshMetric.RecordModuleLoad(context.Background())
	assert.NotNil(t, NoopMeshMetric())
}
