// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command engine is a minimal, example-only entry point that wires
// pkg/config, pkg/controller and pkg/telemetry together and admits every
// pipeline-group found in a configuration file. A concrete CLI is out of
// scope for this module; this binary exists to exercise the wiring end to
// end and to give operators something to start from, in the spirit of the
// teacher's otelarrowcol command.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/open-telemetry/otap-dataflow-go/pkg/config"
	"github.com/open-telemetry/otap-dataflow-go/pkg/controller"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pipeline"
	"github.com/open-telemetry/otap-dataflow-go/pkg/telemetry"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a pipeline configuration file (YAML or JSON)")
	adminAddr := flag.String("admin-addr", "127.0.0.1:13133", "address the telemetry admin endpoint listens on")
	logFile := flag.String("log-file", "", "if set, write logs to this file with rotation instead of stderr")
	flag.Parse()

	logger, err := newLogger(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *configPath == "" {
		logger.Fatal("-config is required")
	}

	doc, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	metrics := telemetry.NewRegistry()
	registry := pipeline.NewRegistry()
	registerDemoPlugins(registry)

	ctrl := controller.New(registry, metrics, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for groupName, group := range doc.Groups {
		for pipelineName, graph := range group.Pipelines {
			quota := controller.Quota{NumCores: group.Quota.NumCores}
			keys, errs := ctrl.Admit(ctx, controller.PipelineGroupKey(groupName), controller.PipelineKey(pipelineName), graph, quota)
			if len(errs) > 0 {
				logger.Fatal("failed to admit pipeline",
					zap.String("group", groupName),
					zap.String("pipeline", pipelineName),
					zap.Errors("errors", errs))
			}
			logger.Info("admitted pipeline",
				zap.String("group", groupName),
				zap.String("pipeline", pipelineName),
				zap.Int("shards", len(keys)))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry/metrics", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := metrics.Snapshot(r.Context())
		if err != nil {
			logger.Error("failed to collect telemetry snapshot", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			writeSnapshotTable(w, snapshot)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logger.Error("failed to encode telemetry snapshot", zap.Error(err))
		}
	})

	server := &http.Server{Addr: *adminAddr, Handler: mux}
	go func() {
		logger.Info("admin endpoint listening", zap.String("addr", *adminAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin endpoint failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin endpoint shutdown failed", zap.Error(err))
	}
}

// newLogger builds the process logger. With no file configured it behaves
// like zap.NewProduction; with one, it writes JSON logs through a rotating
// lumberjack sink instead of stderr, in the manner of the teacher's
// zapcore.WriteSyncer wiring.
func newLogger(logFile string) (*zap.Logger, error) {
	if logFile == "" {
		return zap.NewProduction()
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	})
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, zap.InfoLevel)
	return zap.New(core), nil
}

// writeSnapshotTable renders a telemetry snapshot as a table, grounded on
// the teacher's use of tablewriter for human-readable CLI output.
func writeSnapshotTable(w http.ResponseWriter, snapshot []telemetry.DataPoint) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "Name", "Kind", "Value", "P99"})
	for _, dp := range snapshot {
		value := fmt.Sprintf("%g", dp.Value)
		p99 := "-"
		if dp.Histogram != nil {
			value = "-"
			p99 = fmt.Sprintf("%g", dp.Histogram.P99)
		}
		table.Append([]string{dp.Attributes["node"], dp.Name, string(dp.InstrumentKind), value, p99})
	}
	table.Render()
}
