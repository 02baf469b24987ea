package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDefaultFile 写出默认配置 YAML；文件已存在时保持不变并返回 false
// WriteDefaultFile writes the default config as YAML. An existing file is
// left alone and reported with written=false.
func WriteDefaultFile(path string) (written bool, err error) {
	path, err = expandPath(path)
	if err != nil {
		return false, err
	}
	if path == "" {
		return false, errors.New("config path is empty")
	}

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("config path is a directory: %s", path)
		}
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("mkdir config dir: %w", err)
	}
	data, err := Marshal(Default())
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// Marshal 以 YAML 输出配置，时长写成可读字符串
// Marshal renders cfg as YAML with durations in their string form
func Marshal(cfg Config) ([]byte, error) {
	doc := map[string]any{
		"storage": map[string]any{"data_dir": cfg.Storage.DataDir},
		"monitor": map[string]any{
			"enabled":       cfg.Monitor.Enabled,
			"poll_interval": cfg.Monitor.PollInterval.String(),
			"clipboard":     cfg.Monitor.Clipboard,
		},
		"retention": map[string]any{
			"interval":     cfg.Retention.Interval.String(),
			"orphan_grace": cfg.Retention.OrphanGrace.String(),
		},
		"log": map[string]any{"level": cfg.Log.Level, "format": cfg.Log.Format},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
