// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:generate mdatagen metadata.yaml

// Package fileexporter exports data to files.
package fileexporter // import "github.com/f5/otel-arrow-adapter/collector/gen/exporter/fileexporter"