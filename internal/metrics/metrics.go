// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics is the ambient observability surface for the gateway: a
// small Prometheus exposition endpoint counting publish ticks, publish
// errors, IPC requests and connected clients per protocol server. The pack
// carries prometheus/client_golang for querying a remote Prometheus
// (internal/metricdata/prometheus.go in the teacher); here the exposition
// half of the same dependency (prometheus/client_golang/prometheus +
// promhttp) is wired instead, since the gateway is the thing being scraped.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantscope/dataservice/pkg/log"
)

var (
	PublishTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataservice_publish_ticks_total",
		Help: "Number of completed publish ticks per protocol server.",
	}, []string{"protocol"})

	PublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataservice_publish_errors_total",
		Help: "Number of publish ticks that logged at least one encoding error.",
	}, []string{"protocol"})

	IPCRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataservice_ipc_requests_total",
		Help: "Number of IPC requests handled, by action and outcome.",
	}, []string{"action", "outcome"})

	ConnectedClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataservice_connected_clients",
		Help: "Number of currently connected clients per protocol server.",
	}, []string{"protocol"})
)

func init() {
	prometheus.MustRegister(PublishTicks, PublishErrors, IPCRequests, ConnectedClients)
}

// Serve starts the metrics HTTP endpoint and blocks until ctx is cancelled.
// An empty addr disables the endpoint entirely.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warnf("metrics: server stopped: %v", err)
	}
}
