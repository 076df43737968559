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

// nfctag reads, writes and verifies URL records on physical Type 2 tags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	klippynfc "github.com/erikbuild/klippyNFC"
	"github.com/erikbuild/klippyNFC/tagops"
	"github.com/erikbuild/klippyNFC/transport/i2c"
	"github.com/erikbuild/klippyNFC/transport/spi"
	"github.com/erikbuild/klippyNFC/transport/uart"
)

type config struct {
	devicePath string
	writeURL   string
	verifyURL  string
	timeout    time.Duration
	debug      bool
}

var (
	flagDevicePath string
	flagWriteURL   string
	flagVerifyURL  string
	flagTimeout    time.Duration
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Device path (e.g. /dev/ttyAMA0, SPI0.0, /dev/i2c-1)")
	flag.StringVar(&flagWriteURL, "write", "", "URL to write to the next scanned tag")
	flag.StringVar(&flagVerifyURL, "verify", "", "URL to verify against the next scanned tag")
	flag.DurationVar(&flagTimeout, "timeout", 30*time.Second, "How long to wait for a tag")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath: flagDevicePath,
		writeURL:   flagWriteURL,
		verifyURL:  flagVerifyURL,
		timeout:    flagTimeout,
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

func waitForTag(ctx context.Context, ops *tagops.TagOperations, timeout time.Duration) (*klippynfc.DetectedTag, error) {
	_, _ = fmt.Println("Please place a tag near the reader...")
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tag, err := ops.DetectTag(ctx, time.Second)
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, tagops.ErrNoTag) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no tag within %s", timeout)
		}
	}
}

func printResult(result *tagops.SessionResult) {
	if result == nil {
		return
	}
	_, _ = fmt.Printf("  UID:  %s\n", result.UID)
	_, _ = fmt.Printf("  CC:   %s\n", result.CC)
	if result.URL != "" {
		_, _ = fmt.Printf("  URL:  %s\n", result.URL)
	}
	if len(result.RawNDEF) > 0 {
		_, _ = fmt.Printf("  NDEF: % X\n", result.RawNDEF)
	}
}

func run(ctx context.Context, cfg *config) error {
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

	ops := tagops.New(device)
	tag, err := waitForTag(ctx, ops, cfg.timeout)
	if err != nil {
		return err
	}
	_, _ = fmt.Printf("Tag detected: UID=%s\n", tag.UID)

	switch {
	case cfg.writeURL != "":
		if err := ops.WriteURL(ctx, cfg.writeURL); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		_, _ = fmt.Printf("Wrote URL: %s\n", cfg.writeURL)
		result, err := ops.Verify(ctx, cfg.writeURL)
		if err != nil {
			return fmt.Errorf("read-back failed: %w", err)
		}
		if !result.Verified {
			return fmt.Errorf("read-back mismatch: tag holds %q", result.URL)
		}
		_, _ = fmt.Println("Read-back verified.")
		return nil

	case cfg.verifyURL != "":
		result, err := ops.Verify(ctx, cfg.verifyURL)
		printResult(result)
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}
		if result.Verified {
			_, _ = fmt.Println("Tag matches.")
		} else {
			_, _ = fmt.Println("Tag does NOT match.")
		}
		return nil

	default:
		result, err := ops.ReadTag(ctx)
		printResult(result)
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		return nil
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
