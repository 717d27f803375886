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
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Route values recorded on the deliveries counter
const (
	RouteStream = "stream"
	RouteDirect = "direct"
	RouteFailed = "failed"
)

const routeKey = attribute.Key("route")

// MeshMetric defines the mesh instrumentation
type MeshMetric struct {
	// Specifies the total number of deliveries per route
	deliveries metric.Int64Counter
	// Specifies the total number of hub activations
	hubActivations metric.Int64Counter
	// Specifies the total number of module loads
	moduleLoads metric.Int64Counter
	// Specifies the delivery latency in milliseconds
	deliveryDuration metric.Float64Histogram
}

// NewMeshMetric creates an instance of MeshMetric
func NewMeshMetric(meter metric.Meter) (*MeshMetric, error) {
	meshMetric := new(MeshMetric)
	var err error
	if meshMetric.deliveries, err = meter.Int64Counter(
		"mesh_deliveries",
		metric.WithDescription("Total number of deliveries per route"),
	); err != nil {
		return nil, fmt.Errorf("failed to create deliveries instrument, %w", err)
	}

	if meshMetric.hubActivations, err = meter.Int64Counter(
		"mesh_hub_activations",
		metric.WithDescription("Total number of hub activations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hubActivations instrument, %w", err)
	}

	if meshMetric.moduleLoads, err = meter.Int64Counter(
		"mesh_module_loads",
		metric.WithDescription("Total number of modules loaded"),
	); err != nil {
		return nil, fmt.Errorf("failed to create moduleLoads instrument, %w", err)
	}

	if meshMetric.deliveryDuration, err = meter.Float64Histogram(
		"mesh_delivery_duration",
		metric.WithDescription("The latency of a delivery in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create deliveryDuration instrument, %w", err)
	}
	return meshMetric, nil
}

// NoopMeshMetric returns instruments that record nothing.
func NoopMeshMetric() *MeshMetric {
	meshMetric, _ := NewMeshMetric(noopMeter())
	return meshMetric
}

// RecordDelivery counts a delivery on its route along with its latency.
func (x *MeshMetric) RecordDelivery(ctx context.Context, route string, elapsed time.Duration) {
	if x == nil {
		return
	}
	x.deliveries.Add(ctx, 1, metric.WithAttributes(routeKey.String(route)))
	x.deliveryDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(routeKey.String(route)))
}

// RecordHubActivation counts a successful hub activation.
func (x *MeshMetric) RecordHubActivation(ctx context.Context) {
	if x == nil {
		return
	}
	x.hubActivations.Add(ctx, 1)
}

// RecordModuleLoad counts a module load.
func (x *MeshMetric) RecordModuleLoad(ctx context.Context) {
	if x == nil {
		return
	}
	x.moduleLoads.Add(ctx, 1)
}
