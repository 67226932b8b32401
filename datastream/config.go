// Copyright (c) 2025 ADBC Drivers Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datastream

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/goccy/go-json"
)

// DefaultConfigPath is where the host writes the configuration of a run.
const DefaultConfigPath = "jupyterPipes.json"

// DefaultTempFileFormat is written back into a configuration that does not
// name a format.
const DefaultTempFileFormat = FormatYXDB

const (
	keyInputConnections = "input_connections"
	keyConstants        = "Constants"
	keyTempFileFormat   = "temp_file_format"
	keyOutputDirectory  = "output_directory"
	keyDebug            = "debug"
)

// Config is the run configuration written by the host. It is read once and
// not modified afterwards, except for the temp_file_format write-back.
type Config struct {
	// Path is the absolute path of the configuration file.
	Path string
	// InputConnections maps an incoming connection name to its cached file.
	InputConnections map[string]string
	// Constants holds workflow constants: string, int64, float64 or bool.
	Constants       map[string]any
	TempFileFormat  Format
	OutputDirectory string
	Debug           bool
}

// LoadConfig reads the configuration at path. A missing temp_file_format is
// set to the default and written back into the file.
func LoadConfig(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	errs := &driverbase.ErrorHelper{DriverName: DriverName, Logger: logger}
	if path == "" {
		path = DefaultConfigPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.WrapValue(err, "invalid config path %q", path)
	}

	raw, err := readConfigJSON(abs, errs)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Path:             abs,
		InputConnections: map[string]string{},
		Constants:        map[string]any{},
		OutputDirectory:  filepath.Dir(abs),
	}

	if v, ok := raw[keyInputConnections]; ok {
		conns, ok := v.(map[string]any)
		if !ok {
			return nil, errs.TypeError("%s must be an object, not %T (%s)", keyInputConnections, v, abs)
		}
		for name, p := range conns {
			s, ok := p.(string)
			if !ok {
				return nil, errs.TypeError("input connection %q must map to a file path, not %T (%s)", name, p, abs)
			}
			if !filepath.IsAbs(s) {
				s = filepath.Join(cfg.OutputDirectory, s)
			}
			cfg.InputConnections[name] = s
		}
	}

	if v, ok := raw[keyConstants]; ok {
		constants, ok := v.(map[string]any)
		if !ok {
			return nil, errs.TypeError("%s value must be an object, not %T (%s)", keyConstants, v, abs)
		}
		for name, value := range constants {
			c, err := constantValue(value)
			if err != nil {
				return nil, errs.TypeError("Constants values must be str, float, int or bool -- invalid type %T for %q: %v", value, name, err)
			}
			cfg.Constants[name] = c
		}
	}

	v, ok := raw[keyTempFileFormat]
	if !ok {
		v = string(DefaultTempFileFormat)
		raw[keyTempFileFormat] = v
		if err := writeConfigJSON(abs, raw, errs); err != nil {
			return nil, err
		}
		logger.Debug("wrote default temp file format", slog.String("path", abs), slog.String("format", string(DefaultTempFileFormat)))
	}
	s, ok := v.(string)
	if !ok {
		return nil, errs.TypeError("Temp file format value must be a string, not %T (%s)", v, abs)
	}
	format := Format(s)
	if !slices.Contains(ValidFormats, format) {
		return nil, errs.ValueError("temp file format (%s) is invalid -- valid formats: %v", s, ValidFormats)
	}
	cfg.TempFileFormat = format

	if v, ok := raw[keyOutputDirectory]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, errs.TypeError("%s must be a string, not %T (%s)", keyOutputDirectory, v, abs)
		}
		if !filepath.IsAbs(s) {
			s = filepath.Join(filepath.Dir(abs), s)
		}
		cfg.OutputDirectory = s
	}
	if v, ok := raw[keyDebug]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, errs.TypeError("%s must be true or false, not %T (%s)", keyDebug, v, abs)
		}
		cfg.Debug = b
	}

	if len(cfg.Constants) == 0 {
		return nil, errs.LookupError("You must run the workflow first to make cached data and workflow constants available (%s)", abs)
	}
	logger.Debug("loaded config",
		slog.String("path", abs),
		slog.Int("connections", len(cfg.InputConnections)),
		slog.Int("constants", len(cfg.Constants)),
		slog.String("temp_file_format", string(cfg.TempFileFormat)))
	return cfg, nil
}

func readConfigJSON(path string, errs *driverbase.ErrorHelper) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.WrapReference(err, "Cached data unavailable -- run the workflow to make the input data available (%s)", path)
	} else if err != nil {
		return nil, errs.WrapConnection(err, "Config file error (%s)", path)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errs.WrapValue(err, "Config file error (%s)", path)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errs.TypeError("Input config must be an object, not %T (%s)", raw, path)
	}
	return obj, nil
}

func writeConfigJSON(path string, raw map[string]any, errs *driverbase.ErrorHelper) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errs.WrapValue(err, "Unable to write config file (%s)", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.WrapConnection(err, "Unable to write config file with new temp file format (%s)", path)
	}
	return nil
}

// constantValue narrows a decoded JSON value to a constant: integers stay
// integers.
func constantValue(v any) (any, error) {
	switch v := v.(type) {
	case string, bool:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	default:
		return nil, errors.New("not a scalar")
	}
}

// ConnectionNames returns the incoming connection names, sorted.
func (c *Config) ConnectionNames() []string {
	return slices.Sorted(maps.Keys(c.InputConnections))
}
