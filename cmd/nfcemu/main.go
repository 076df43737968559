// Copyright 2026 The KlippyNFC Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// nfcemu emulates an NFC tag that opens the printer's web interface when
// tapped by a phone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	klippynfc "github.com/erikbuild/klippyNFC"
	"github.com/erikbuild/klippyNFC/transport/i2c"
	"github.com/erikbuild/klippyNFC/transport/spi"
	"github.com/erikbuild/klippyNFC/transport/uart"
)

type config struct {
	devicePath string
	url        string
	uid        string
	tagType    string
	port       int
	debug      bool
}

var (
	flagDevicePath string
	flagURL        string
	flagUID        string
	flagTagType    string
	flagPort       int
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Device path (e.g. /dev/ttyAMA0, SPI0.0, /dev/i2c-1)")
	flag.StringVar(&flagURL, "url", "", "URL to serve (discovered from hostname if empty)")
	flag.StringVar(&flagUID, "uid", "010203", "Emulated tag UID (3 hex bytes)")
	flag.StringVar(&flagTagType, "type", "type4", "Tag personality: type4 or type2")
	flag.IntVar(&flagPort, "port", 80, "Web interface port for discovered URLs")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath: flagDevicePath,
		url:        flagURL,
		uid:        flagUID,
		tagType:    flagTagType,
		port:       flagPort,
		debug:      flagDebug,
	}
	if cfg.debug {
		klippynfc.SetDebugEnabled(true)
	}
	return cfg
}

// newTransport creates a transport from a device path by pattern.
func newTransport(path string) (klippynfc.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}
	pathLower := strings.ToLower(path)

	if strings.Contains(pathLower, "i2c") {
		transport, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport for %s: %w", path, err)
		}
		return transport, nil
	}
	if strings.Contains(pathLower, "spi") {
		transport, err := spi.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport for %s: %w", path, err)
		}
		return transport, nil
	}
	transport, err := uart.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
	}
	return transport, nil
}

// resolveDevicePath falls back to USB serial auto-detection when no device
// path was given.
func resolveDevicePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	ports, err := uart.DetectPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no PN532 device found; pass -device")
	}
	return ports[0], nil
}

// discoverURL constructs the web interface URL when none was given: the
// machine hostname, or the outbound interface address when the hostname is
// unusable.
func discoverURL(cfg *config) string {
	if cfg.url != "" {
		return cfg.url
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" || hostname == "localhost" {
		hostname = outboundAddress()
	}
	if cfg.port == 80 {
		return fmt.Sprintf("http://%s", hostname)
	}
	return fmt.Sprintf("http://%s:%d", hostname, cfg.port)
}

// outboundAddress finds the local address used for external traffic. The
// dial never sends a packet; UDP connect just picks a route.
func outboundAddress() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "printer.local"
	}
	defer func() { _ = conn.Close() }()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "printer.local"
	}
	return addr.IP.String()
}

func tagTypeFromName(name string) (klippynfc.TagType, error) {
	switch strings.ToLower(name) {
	case "type4", "4":
		return klippynfc.TagType4, nil
	case "type2", "2":
		return klippynfc.TagType2, nil
	default:
		return 0, fmt.Errorf("unknown tag type %q", name)
	}
}

func run(ctx context.Context, cfg *config) error {
	tagType, err := tagTypeFromName(cfg.tagType)
	if err != nil {
		return err
	}

	devicePath, err := resolveDevicePath(cfg.devicePath)
	if err != nil {
		return err
	}
	transport, err := newTransport(devicePath)
	if err != nil {
		return err
	}
	device, err := klippynfc.New(transport)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if err := device.Init(ctx); err != nil {
		return fmt.Errorf("device initialization failed: %w", err)
	}
	if fw := device.FirmwareVersion(); fw != nil {
		_, _ = fmt.Printf("PN532 firmware: %s\n", fw.Version)
	}

	emuConfig := klippynfc.DefaultEmulatorConfig(discoverURL(cfg))
	emuConfig.UID = cfg.uid
	emuConfig.Type = tagType

	emulator, err := klippynfc.NewEmulator(device, emuConfig)
	if err != nil {
		return err
	}
	if err := emulator.Start(ctx); err != nil {
		return err
	}
	_, _ = fmt.Printf("NFC emulation started: %s (%s)\n", emuConfig.URL, tagType)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := emulator.Stop(); err != nil {
				return fmt.Errorf("emulation shutdown: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			status := emulator.Status()
			if !status.Running {
				return fmt.Errorf("emulation loop exited: %w", emulator.Err())
			}
			klippynfc.Debugf("status: %d sessions served, %d consecutive errors",
				status.Sessions, status.ErrorCount)
		}
	}
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
