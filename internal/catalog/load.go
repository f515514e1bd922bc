package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File base names inside a catalog directory. Each may be .json, .yaml or .yml.
const (
	StationsFile   = "stations"
	LinesFile      = "lines"
	TrainTypesFile = "train-types"
	ServicesFile   = "services"
)

var extensions = []string{".json", ".yaml", ".yml"}

// LoadDir reads all four catalog files from dir.
func LoadDir(dir string) (*Catalog, error) {
	var (
		stations   []Station
		lines      []Line
		trainTypes []TrainType
		services   []Service
	)
	if err := LoadFile(dir, StationsFile, &stations); err != nil {
		return nil, err
	}
	if err := LoadFile(dir, LinesFile, &lines); err != nil {
		return nil, err
	}
	if err := LoadFile(dir, TrainTypesFile, &trainTypes); err != nil {
		return nil, err
	}
	if err := LoadFile(dir, ServicesFile, &services); err != nil {
		return nil, err
	}
	return New(stations, lines, trainTypes, services), nil
}

// LoadGeometry reads only stations and lines, which is all path precomputation needs.
func LoadGeometry(dir string) (*Catalog, error) {
	var (
		stations []Station
		lines    []Line
	)
	if err := LoadFile(dir, StationsFile, &stations); err != nil {
		return nil, err
	}
	if err := LoadFile(dir, LinesFile, &lines); err != nil {
		return nil, err
	}
	return New(stations, lines, nil, nil), nil
}

// LoadFile finds base.{json,yaml,yml} in dir and decodes it into v.
func LoadFile(dir, base string, v any) error {
	path, err := findFile(dir, base)
	if err != nil {
		return err
	}
	return DecodeFile(path, v)
}

// DecodeFile decodes a JSON or YAML file, chosen by extension.
func DecodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func findFile(dir, base string) (string, error) {
	for _, ext := range extensions {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("%s: no %s.json/.yaml/.yml found: %w", dir, base, os.ErrNotExist)
}
