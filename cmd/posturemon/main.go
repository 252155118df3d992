//    Copyright 2025 The PostureKit Authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/posturekit/PostureWorker/pkg/logging"
	"github.com/posturekit/PostureWorker/pkg/monitor"
	"github.com/posturekit/PostureWorker/pkg/notifier"
	"github.com/posturekit/PostureWorker/pkg/postlog"
	"github.com/posturekit/PostureWorker/pkg/posture"
	"github.com/posturekit/PostureWorker/pkg/serial"
	"github.com/posturekit/PostureWorker/pkg/ui"
	"github.com/posturekit/PostureWorker/service/mqtt"
)

const projectName = "PostureKit Monitor"

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var levelFlag string
	var username string
	var dbPath string
	var interval time.Duration
	var sourceType string
	var seed int64
	var serialDevice string
	var serialBaud int
	var profile string
	var mqttHost string
	var mqttPort int
	var mqttUserName string
	var mqttPassword string
	var topicPrefix string
	var noUI bool
	var logFile string

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVar(&logFile, "log-file", "", "Also write logs to this file")
	pflag.StringVarP(&username, "username", "u", "", "Username to log posture changes under")
	pflag.StringVar(&dbPath, "db", "posture_data.db", "Path of the posture log database")
	pflag.DurationVar(&interval, "interval", monitor.DefaultInterval, "Time between posture samples")
	pflag.StringVar(&sourceType, "source", "simulated", "Posture source (simulated|mqtt)")
	pflag.Int64Var(&seed, "seed", 0, "Seed for the simulated source (0 seeds from the clock)")
	pflag.StringVar(&serialDevice, "serial-device", "", "Serial device of the actuator worker (empty disables triggering)")
	pflag.IntVar(&serialBaud, "serial-baud", 9600, "Baud rate of the serial device")
	pflag.StringVar(&profile, "profile", "pulse", "Trigger profile of the actuator worker (pulse|sweep|sweep-line)")
	pflag.StringVar(&mqttHost, "mqtt-host", "", "Host of the MQTT broker (empty disables MQTT)")
	pflag.IntVar(&mqttPort, "mqtt-port", 1883, "Port of the MQTT broker")
	pflag.StringVar(&mqttUserName, "mqtt-username", "", "Username for the MQTT broker")
	pflag.StringVar(&mqttPassword, "mqtt-password", "", "Password for the MQTT broker")
	pflag.StringVar(&topicPrefix, "topic-prefix", "posture/monitor", "Prefix for MQTT topics")
	pflag.BoolVar(&noUI, "no-ui", false, "Run without the terminal UI")
	pflag.Parse()

	// The UI owns the terminal, so logs can be teed to a file.
	logWriter := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr})
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			Exitf("Failed to open log file '%s': %v\n", logFile, err)
		}
		defer f.Close()
		logWriter.Add(zerolog.ConsoleWriter{Out: f, NoColor: true})
	}
	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	if username == "" {
		Exitf("A username is required (--username)\n")
	}

	store, err := postlog.NewStore(dbPath, logger)
	if err != nil {
		Exitf("Failed to open posture log: %v\n", err)
	}
	defer store.Close()
	exists, err := store.UsernameExists(context.Background(), username)
	if err != nil {
		Exitf("Failed to check username: %v\n", err)
	}
	if exists {
		Exitf("Username '%s' already exists. Please choose a different username.\n", username)
	}

	var mqttService mqtt.Service
	if mqttHost != "" {
		mqttService, err = mqtt.NewService(mqtt.Config{
			Host:     mqttHost,
			Port:     mqttPort,
			UserName: mqttUserName,
			Password: mqttPassword,
			ClientID: "posture-monitor",
		}, logger)
		if err != nil {
			Exitf("Failed to initialize MQTT service: %v\n", err)
		}
	}

	var source posture.Source
	var landmarkSource *posture.LandmarkSource
	switch sourceType {
	case "simulated":
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		source = posture.NewSimulatedSource(seed)
	case "mqtt":
		if mqttService == nil {
			Exitf("The mqtt source requires --mqtt-host\n")
		}
		landmarkSource = posture.NewLandmarkSource(mqttService, path.Join(topicPrefix, "landmarks"), logger)
		source = landmarkSource
	default:
		Exitf("Unknown source type '%s' (simulated|mqtt)\n", sourceType)
	}

	monitorSvc, err := monitor.NewService(monitor.Config{
		Interval: interval,
	}, monitor.Dependencies{
		Log:    logger,
		Source: source,
	})
	if err != nil {
		Exitf("Failed to initialize monitor: %v\n", err)
	}

	// Record every status change.
	monitorSvc.RegisterStatusReceiver(func(change monitor.StatusChange) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := store.InsertStatusChange(ctx, username, change.Time, change.Status); err != nil {
			logger.Error().Err(err).Msg("Failed to record status change")
		}
	})

	// Trigger the actuator worker on slouch.
	if serialDevice != "" {
		port, err := serial.Open(serial.Config{Device: serialDevice, Baud: serialBaud})
		if err != nil {
			Exitf("Failed to open serial device '%s': %v\n", serialDevice, err)
		}
		defer port.Close()
		n, err := notifier.NewNotifier(notifier.Config{
			Profile: notifier.Profile(profile),
		}, notifier.Dependencies{
			Log:  logger,
			Port: port,
		})
		if err != nil {
			Exitf("Failed to initialize notifier: %v\n", err)
		}
		monitorSvc.RegisterStatusReceiver(n.Notify)
	}

	// Publish status changes for other interested parties.
	if mqttService != nil {
		statusTopic := path.Join(topicPrefix, "status")
		monitorSvc.RegisterStatusReceiver(func(change monitor.StatusChange) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*250)
			defer cancel()
			if err := mqttService.Publish(ctx, change, statusTopic, mqtt.QosDefault); err != nil {
				logger.Error().Err(err).Msg("Failed to publish status change")
			}
		})
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitorSvc.Run(ctx) })
	if landmarkSource != nil {
		g.Go(func() error { return landmarkSource.Run(ctx) })
	}
	if !noUI {
		g.Go(func() error {
			p := tea.NewProgram(ui.NewMonitorModel(username, monitorSvc, store), tea.WithAltScreen(), tea.WithContext(ctx))
			defer cancel()
			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		Exitf("Monitor run failed: %#v", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
