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

package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/model"
)

// runLoadConfig loads the worker configuration and puts it, and every
// subsequent change of the configuration file, in the configChanged
// channel.
func (s *service) runLoadConfig(ctx context.Context, log zerolog.Logger, configChanged chan<- model.LocalConfiguration) error {
	log = log.With().Str("component", "config-loader").Str("file", s.ConfigFile).Logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return maskAny(err)
	}
	defer watcher.Close()
	// Watch the directory; editors typically replace the file.
	if err := watcher.Add(filepath.Dir(s.ConfigFile)); err != nil {
		return maskAny(err)
	}

	var lastConf *model.LocalConfiguration
	load := func() {
		conf, err := loadConfigFile(s.ConfigFile)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load configuration")
			return
		}
		if lastConf != nil && reflect.DeepEqual(*lastConf, conf) {
			log.Debug().Msg("Received identical configuration")
			return
		}
		log.Debug().Msg("Loaded new configuration")
		lastConf = &conf
		select {
		case configChanged <- conf:
			// Continue
		case <-ctx.Done():
			// Context canceled
		}
	}

	load()
	for {
		select {
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(s.ConfigFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Let the writer finish
			time.Sleep(time.Millisecond * 100)
			load()
		case err := <-watcher.Errors:
			log.Warn().Err(err).Msg("Watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

// loadConfigFile reads and validates the configuration in the file
// with given path.
func loadConfigFile(path string) (model.LocalConfiguration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.LocalConfiguration{}, maskAny(err)
	}
	var conf model.LocalConfiguration
	if err := json.Unmarshal(raw, &conf); err != nil {
		return model.LocalConfiguration{}, maskAny(err)
	}
	if err := conf.Validate(); err != nil {
		return model.LocalConfiguration{}, maskAny(err)
	}
	return conf, nil
}
