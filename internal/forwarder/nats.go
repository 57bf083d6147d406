// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package forwarder implements the optional MQTT-style snapshot publisher
// described in the gateway's §4.8: a periodic JSON snapshot of the
// DataStore pushed to a message bus subject. No MQTT client ships in this
// corpus, so it is built on the same NATS client the rest of the stack
// already depends on, wrapped the way the teacher wraps nats.go: a
// singleton connection with reconnect/error handlers, fed from a bounded,
// drop-oldest channel.
package forwarder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/plantscope/dataservice/internal/config"
	"github.com/plantscope/dataservice/pkg/log"
)

// Client wraps a NATS connection dedicated to publishing snapshots.
type Client struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the configured NATS server. Returns nil, nil if no
// forwarder is configured — callers should treat that as "disabled".
func Connect(cfg *config.NatsForwarder) (*Client, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, nil
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warnf("forwarder: NATS disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		log.Infof("forwarder: NATS reconnected to %s", nc.ConnectedUrl())
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("forwarder: NATS connect failed: %w", err)
	}

	log.Infof("forwarder: connected to %s, publishing to '%s'", cfg.Address, cfg.Subject)
	return &Client{conn: nc, subject: cfg.Subject}, nil
}

func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.conn.Close()
}

// Run periodically marshals snapshot() and publishes it, applying
// drop-oldest backpressure as specified in §5: a full queue drops the
// oldest pending snapshot rather than blocking the sampler.
func (c *Client) Run(stop <-chan struct{}, interval time.Duration, queueSize int, snapshot func() map[string]any) {
	if c == nil {
		return
	}
	if queueSize <= 0 {
		queueSize = 16
	}

	queue := make(chan map[string]any, queueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range queue {
			data, err := json.Marshal(snap)
			if err != nil {
				log.Errorf("forwarder: marshal snapshot failed: %v", err)
				continue
			}
			if err := c.conn.Publish(c.subject, data); err != nil {
				log.Warnf("forwarder: publish failed: %v", err)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			close(queue)
			<-done
			return
		case <-ticker.C:
			snap := snapshot()
			select {
			case queue <- snap:
			default:
				// Drop the oldest pending snapshot, then enqueue the fresh one.
				select {
				case <-queue:
				default:
				}
				select {
				case queue <- snap:
				default:
				}
			}
		}
	}
}
