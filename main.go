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

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/posturekit/PostureWorker/pkg/environment"
	"github.com/posturekit/PostureWorker/pkg/logging"
	"github.com/posturekit/PostureWorker/pkg/ui"
	"github.com/posturekit/PostureWorker/server"
	"github.com/posturekit/PostureWorker/service"
	"github.com/posturekit/PostureWorker/service/bridge"
	"github.com/posturekit/PostureWorker/service/mqtt"
)

const (
	projectName     = "PostureKit Actuator Worker"
	defaultHTTPPort = 7312
	defaultSSHPort  = 7322
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var levelFlag string
	var bridgeType string
	var configFile string
	var serverHost string
	var httpPort int
	var sshPort int
	var hostKeyPath string
	var mqttHost string
	var mqttPort int
	var mqttUserName string
	var mqttPassword string
	var topicPrefix string

	pflag.StringVarP(&levelFlag, "level", "l", "debug", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", "auto", "Type of bridge to use (auto|rpi|virtual)")
	pflag.StringVarP(&configFile, "config", "c", "worker.json", "Path of the worker configuration file")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the servers will listen on")
	pflag.IntVar(&httpPort, "http-port", defaultHTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&sshPort, "ssh-port", defaultSSHPort, "Port the SSH UI will listen on (0 disables)")
	pflag.StringVar(&hostKeyPath, "host-key", ".ssh/id_ed25519", "Path of the SSH host key")
	pflag.StringVar(&mqttHost, "mqtt-host", "", "Host of the MQTT broker (empty disables MQTT)")
	pflag.IntVar(&mqttPort, "mqtt-port", 1883, "Port of the MQTT broker")
	pflag.StringVar(&mqttUserName, "mqtt-username", "", "Username for the MQTT broker")
	pflag.StringVar(&mqttPassword, "mqtt-password", "", "Password for the MQTT broker")
	pflag.StringVar(&topicPrefix, "topic-prefix", "posture/worker", "Prefix for MQTT topics")
	pflag.Parse()

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())

	logWriter := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr})
	mqttLogWriter := logging.NewMQTTWriter(ctx)
	logWriter.Add(mqttLogWriter)
	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	if bridgeType == "auto" {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	var br bridge.API
	var err error
	switch bridgeType {
	case "rpi":
		br, err = bridge.NewRaspberryPiBridge()
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi Bridge: %v\n", err)
		}
	case "virtual":
		br = bridge.NewVirtualBridge(logger)
	default:
		Exitf("Unknown bridge type '%s' (rpi|virtual)\n", bridgeType)
	}

	var mqttService mqtt.Service
	if mqttHost != "" {
		mqttService, err = mqtt.NewService(mqtt.Config{
			Host:     mqttHost,
			Port:     mqttPort,
			UserName: mqttUserName,
			Password: mqttPassword,
			ClientID: "posture-worker",
		}, logger)
		if err != nil {
			Exitf("Failed to initialize MQTT service: %v\n", err)
		}
		mqttLogWriter.SetDestination(path.Join(topicPrefix, "logs"), mqttService)
		mqttLogWriter.Enable(true)
	}

	svc, err := service.NewService(service.Config{
		ConfigFile:  configFile,
		TopicPrefix: topicPrefix,
	}, service.Dependencies{
		Log:         logger,
		Bridge:      br,
		MQTTService: mqttService,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	httpServer, err := server.New(server.Config{
		Host:        serverHost,
		HTTPPort:    httpPort,
		SSHPort:     sshPort,
		HostKeyPath: hostKeyPath,
	}, logger, svc, &ui.WorkerUI{API: svc})
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return httpServer.Run(ctx) })
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %#v", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
