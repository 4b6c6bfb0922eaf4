// Package config loads per-engine tunables from an .ini file via
// gopkg.in/ini.v1 and exposes the write-path Configurator that composes
// per-concern sub-configurators (voltage, rectifier, battery) onto a
// single struct.
package config

import (
	"time"

	"gopkg.in/ini.v1"
)

// EngineConfig is one plant's settings, loadable from an .ini file section
// named after the plant. cmd/eemclient passes Name, Host, Port and CCID to
// the engine; ScanPeriod, RequestTimeout, LostTimeout and MaxSendCount are
// not passed on, and the engine uses its own constants for them.
type EngineConfig struct {
	Name           string
	Host           string
	Port           int
	CCID           byte
	ScanPeriod     time.Duration
	RequestTimeout time.Duration
	LostTimeout    time.Duration
	MaxSendCount   uint8
}

// defaults mirror the wire protocol's documented tunables.
var defaults = EngineConfig{
	Port:           2000,
	ScanPeriod:     90 * time.Second,
	RequestTimeout: 10 * time.Second,
	LostTimeout:    60 * time.Second,
	MaxSendCount:   2,
}

// Load reads section from path and overlays it onto defaults.
func Load(path string, section string) (EngineConfig, error) {
	cfg := defaults
	f, err := ini.Load(path)
	if err != nil {
		return cfg, err
	}
	sec := f.Section(section)
	cfg.Name = sec.Key("name").MustString(section)
	cfg.Host = sec.Key("host").MustString("127.0.0.1")
	cfg.Port = sec.Key("port").MustInt(defaults.Port)
	cfg.CCID = byte(sec.Key("cc_id").MustInt(0))
	cfg.ScanPeriod = sec.Key("scan_period").MustDuration(defaults.ScanPeriod)
	cfg.RequestTimeout = sec.Key("request_timeout").MustDuration(defaults.RequestTimeout)
	cfg.LostTimeout = sec.Key("lost_timeout").MustDuration(defaults.LostTimeout)
	cfg.MaxSendCount = uint8(sec.Key("max_send_count").MustInt(int(defaults.MaxSendCount)))
	return cfg, nil
}
