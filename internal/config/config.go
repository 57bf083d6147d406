// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the gateway's environment-variable driven
// configuration plus the optional DATASERVICE_CONFIG JSON document for the
// snapshot forwarder and privilege drop.
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/plantscope/dataservice/pkg/log"
)

// NatsForwarder configures the optional MQTT-style snapshot publisher.
type NatsForwarder struct {
	Address       string `json:"address"`
	Subject       string `json:"subject"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	CredsFilePath string `json:"creds-file-path"`
	Interval      string `json:"interval"`
	QueueSize     int    `json:"queue-size"`
}

// Extra is the optional DATASERVICE_CONFIG document.
type Extra struct {
	User          string         `json:"user"`
	Group         string         `json:"group"`
	HistoryLength int            `json:"history-length"`
	Nats          *NatsForwarder `json:"nats"`
}

// Keys holds the resolved configuration for the running process.
type Keys struct {
	ServerHost    string
	ModbusPort    int
	IEC104Port    int
	IEC104PortAlt int
	OPCUAPort     int
	SNMPPort      int
	IPCSocketPath string
	MetricsAddr   string
	HistoryLength int
	Extra         Extra
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("config: %s=%q is not an integer, using default %d", name, v, def)
		return def
	}
	return n
}

// Load resolves Keys from the environment plus, if set, the
// DATASERVICE_CONFIG variable (a path to a JSON file, or inline JSON).
func Load() Keys {
	k := Keys{
		ServerHost:    getEnv("SERVER_HOST", "0.0.0.0"),
		ModbusPort:    getEnvInt("MODBUS_PORT", 5020),
		IEC104Port:    getEnvInt("IEC104_PORT", 2404),
		IEC104PortAlt: getEnvInt("IEC104_PORT_FALLBACK", 2405),
		OPCUAPort:     getEnvInt("OPCUA_PORT", 4840),
		SNMPPort:      getEnvInt("SNMP_PORT", 1161),
		IPCSocketPath: getEnv("IPC_SOCKET_PATH", "/tmp/dataservice.sock"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9120"),
		HistoryLength: 1000,
	}

	raw := os.Getenv("DATASERVICE_CONFIG")
	if raw == "" {
		return k
	}

	var data []byte
	if b, err := os.ReadFile(raw); err == nil {
		data = b
	} else {
		data = []byte(raw)
	}

	if err := Validate(configSchema, data); err != nil {
		log.Fatalf("DATASERVICE_CONFIG invalid: %s", err.Error())
	}

	if err := json.Unmarshal(data, &k.Extra); err != nil {
		log.Fatalf("DATASERVICE_CONFIG: could not decode: %s", err.Error())
	}

	if k.Extra.HistoryLength > 0 {
		k.HistoryLength = k.Extra.HistoryLength
	}

	return k
}
