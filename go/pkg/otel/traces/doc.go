/*
 * Copyright The OpenTelemetry Authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package traces provides functions to convert OTLP traces to OTLP Arrow traces and vice versa.
package traces
