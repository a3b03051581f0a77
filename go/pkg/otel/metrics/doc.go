/*
 * Copyright The OpenTelemetry Authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metrics provides functions to convert OTLP metrics to OTLP Arrow metrics and vice versa.
// This package also supports the conversion of uni-variate metrics into multi-variate metrics.
package metrics
