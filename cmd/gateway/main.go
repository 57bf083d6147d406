// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	"github.com/plantscope/dataservice/internal/config"
	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/forwarder"
	"github.com/plantscope/dataservice/internal/ipc"
	"github.com/plantscope/dataservice/internal/metrics"
	protoiec104 "github.com/plantscope/dataservice/internal/protocolmapping/iec104"
	protomodbus "github.com/plantscope/dataservice/internal/protocolmapping/modbus"
	protoopcua "github.com/plantscope/dataservice/internal/protocolmapping/opcua"
	protosnmp "github.com/plantscope/dataservice/internal/protocolmapping/snmp"
	serveriec104 "github.com/plantscope/dataservice/internal/servers/iec104"
	servermodbus "github.com/plantscope/dataservice/internal/servers/modbus"
	serveropcua "github.com/plantscope/dataservice/internal/servers/opcua"
	serversnmp "github.com/plantscope/dataservice/internal/servers/snmp"
	"github.com/plantscope/dataservice/pkg/log"
	"github.com/plantscope/dataservice/pkg/runtimeEnv"
)

func main() {
	var flagGops, flagStopImmediately bool
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagStopImmediately, "no-server", false, "Load configuration and exit without starting any listener")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("parsing '.env' file failed: %s", err.Error())
	}

	cfg := config.Load()

	if flagStopImmediately {
		return
	}

	store := datastore.New(nil, cfg.HistoryLength)

	modbusMapping := protomodbus.New()
	iec104Mapping := protoiec104.New()
	opcuaMapping := protoopcua.New()
	snmpMapping := protosnmp.New()

	modbusAddr := cfg.ServerHost + ":" + strconv.Itoa(cfg.ModbusPort)
	iec104Addr := cfg.ServerHost + ":" + strconv.Itoa(cfg.IEC104Port)
	opcuaAddr := cfg.ServerHost + ":" + strconv.Itoa(cfg.OPCUAPort)
	snmpAddr := cfg.ServerHost + ":" + strconv.Itoa(cfg.SNMPPort)

	ipcServer := ipc.New(cfg.IPCSocketPath, store)
	modbusServer := servermodbus.New(modbusAddr, store, modbusMapping)
	iec104Server := serveriec104.New(iec104Addr, store, iec104Mapping)
	opcuaServer := serveropcua.New(opcuaAddr, store, opcuaMapping)
	snmpServer := serversnmp.New(snmpAddr, store, snmpMapping)

	nc, err := forwarder.Connect(cfg.Extra.Nats)
	if err != nil {
		log.Fatal(err.Error())
	}

	metricsCtx, cancelMetrics := context.WithCancel(context.Background())
	go metrics.Serve(metricsCtx, cfg.MetricsAddr)

	if err := ipcServer.Listen(); err != nil {
		log.Fatalf("ipc: listen on %s failed: %s", cfg.IPCSocketPath, err.Error())
	}

	// Privilege drop happens once every listener above has been bound;
	// servers that still need to bind a TCP/UDP socket (Modbus, IEC-104,
	// OPC-UA, SNMP) do so moments later inside their own Start goroutine,
	// which on a production deployment means their ports must be >1024
	// or the process kept root - the config defaults (5020/2404/4840/1161)
	// are all unprivileged for exactly this reason.
	if err := runtimeEnv.DropPrivileges(cfg.Extra.User, cfg.Extra.Group); err != nil {
		log.Fatalf("error while changing user: %s", err.Error())
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	runServer := func(name string, start func(<-chan struct{}) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := start(stop); err != nil {
				log.Errorf("%s: %s", name, err.Error())
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ipcServer.Run(stop)
	}()

	runServer("modbus", modbusServer.Start)
	runServer("iec104", iec104Server.Start)
	runServer("opcua", opcuaServer.Start)
	runServer("snmp", snmpServer.Start)

	if nc != nil {
		interval := 5 * time.Second
		if cfg.Extra.Nats.Interval != "" {
			if d, err := time.ParseDuration(cfg.Extra.Nats.Interval); err == nil {
				interval = d
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			nc.Run(stop, interval, cfg.Extra.Nats.QueueSize, func() map[string]any {
				snap := store.Snapshot()
				out := make(map[string]any, len(snap))
				for k, v := range snap {
					out[k] = v.Interface()
				}
				return out
			})
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	runtimeEnv.SystemdNotifiy(true, "running")
	log.Infof("dataservice gateway: modbus=%s iec104=%s opcua=%s snmp=%s ipc=%s metrics=%s",
		modbusAddr, iec104Addr, opcuaAddr, snmpAddr, cfg.IPCSocketPath, cfg.MetricsAddr)

	<-sigs
	runtimeEnv.SystemdNotifiy(false, "shutting down")

	close(stop)
	ipcServer.Close()
	cancelMetrics()
	nc.Close()
	os.Remove(cfg.IPCSocketPath)

	wg.Wait()
	log.Print("Gracefull shutdown completed!")
}
