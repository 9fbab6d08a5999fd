// dmmirror - A direct-message to backup-group chat mirror.
// Copyright (C) 2026 The dmmirror Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/util/dbutil"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirrordb"
)

//go:embed example-config.yaml
var ExampleConfig string

// EnvPrefix is the prefix of environment variables that override secrets in the config file.
const EnvPrefix = "DMMIRROR_"

type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Database    dbutil.Config     `yaml:"database"`
	Cache       CacheConfig       `yaml:"cache"`
	Mirror      MirrorConfig      `yaml:"mirror"`
	CatchUp     CatchUpConfig     `yaml:"catchup"`
	Media       MediaConfig       `yaml:"media"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     zeroconfig.Config `yaml:"logging"`

	Path string `yaml:"-"`
}

// SourceConfig describes the user account that can see the mirrored conversation.
type SourceConfig struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	Phone       string `yaml:"phone"`
	SessionFile string `yaml:"session_file"`

	PartnerUserID     int64 `yaml:"partner_user_id"`
	PartnerAccessHash int64 `yaml:"partner_access_hash"`
	HistoryBatchSize  int   `yaml:"history_batch_size"`
}

type BotConfig struct {
	Token       string `yaml:"token"`
	DisplayName string `yaml:"display_name"`
}

type DestinationConfig struct {
	GroupID          int64     `yaml:"group_id"`
	VerifyMembership bool      `yaml:"verify_membership"`
	Self             BotConfig `yaml:"self"`
	Peer             BotConfig `yaml:"peer"`
}

type umDestinationConfig DestinationConfig

func (c *DestinationConfig) UnmarshalYAML(node *yaml.Node) error {
	err := node.Decode((*umDestinationConfig)(c))
	if err != nil {
		return err
	}
	return c.PostProcess()
}

func (c *DestinationConfig) PostProcess() error {
	c.Self.Token = strings.TrimSpace(c.Self.Token)
	c.Peer.Token = strings.TrimSpace(c.Peer.Token)
	if c.Self.DisplayName == "" {
		c.Self.DisplayName = "Me"
	}
	if c.Peer.DisplayName == "" {
		c.Peer.DisplayName = "Them"
	}
	return nil
}

type CacheConfig struct {
	// Type is none, memory or redis.
	Type  string               `yaml:"type"`
	Redis mirrordb.RedisConfig `yaml:"redis"`
}

type RetryConfig struct {
	Attempts     int           `yaml:"attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

func (c RetryConfig) Policy() mirror.RetryPolicy {
	return mirror.RetryPolicy{
		Attempts:     c.Attempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
	}
}

type MirrorConfig struct {
	BackfillReplies bool        `yaml:"backfill_replies"`
	Retry           RetryConfig `yaml:"retry"`
}

type CatchUpConfig struct {
	Enabled            bool          `yaml:"enabled"`
	InitialFullSync    bool          `yaml:"initial_full_sync"`
	ItemDelay          time.Duration `yaml:"item_delay"`
	RecentLimit        int           `yaml:"recent_limit"`
	RecoverViewOnce    bool          `yaml:"recover_view_once"`
	DetectOfflineEdits bool          `yaml:"detect_offline_edits"`
}

func (c CatchUpConfig) Options(metrics *mirror.Metrics) mirror.CatchUpOptions {
	return mirror.CatchUpOptions{
		ItemDelay:          c.ItemDelay,
		InitialFullSync:    c.InitialFullSync,
		RecentLimit:        c.RecentLimit,
		RecoverViewOnce:    c.RecoverViewOnce,
		DetectOfflineEdits: c.DetectOfflineEdits,
		Metrics:            metrics,
	}
}

type MediaConfig struct {
	Dir               string        `yaml:"dir"`
	TempDir           string        `yaml:"temp_dir"`
	TempMaxAge        time.Duration `yaml:"temp_max_age"`
	CleanupSchedule   string        `yaml:"cleanup_schedule"`
	MaxImageDimension int           `yaml:"max_image_dimension"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Int, "source", "api_id")
	helper.Copy(up.Str, "source", "api_hash")
	helper.Copy(up.Str, "source", "phone")
	helper.Copy(up.Str, "source", "session_file")
	helper.Copy(up.Int, "source", "partner_user_id")
	helper.Copy(up.Int, "source", "partner_access_hash")
	helper.Copy(up.Int, "source", "history_batch_size")

	helper.Copy(up.Int, "destination", "group_id")
	helper.Copy(up.Bool, "destination", "verify_membership")
	helper.Copy(up.Str, "destination", "self", "token")
	helper.Copy(up.Str, "destination", "self", "display_name")
	helper.Copy(up.Str, "destination", "peer", "token")
	helper.Copy(up.Str, "destination", "peer", "display_name")

	helper.Copy(up.Str, "database", "type")
	helper.Copy(up.Str, "database", "uri")
	helper.Copy(up.Int, "database", "max_open_conns")
	helper.Copy(up.Int, "database", "max_idle_conns")
	helper.Copy(up.Str|up.Null, "database", "max_conn_idle_time")
	helper.Copy(up.Str|up.Null, "database", "max_conn_lifetime")

	helper.Copy(up.Str, "cache", "type")
	helper.Copy(up.Str, "cache", "redis", "addr")
	helper.Copy(up.Str, "cache", "redis", "password")
	helper.Copy(up.Int, "cache", "redis", "db")
	helper.Copy(up.Str, "cache", "redis", "prefix")
	helper.Copy(up.Str, "cache", "redis", "ttl")

	helper.Copy(up.Bool, "mirror", "backfill_replies")
	helper.Copy(up.Int, "mirror", "retry", "attempts")
	helper.Copy(up.Str, "mirror", "retry", "initial_delay")
	helper.Copy(up.Str, "mirror", "retry", "max_delay")

	helper.Copy(up.Bool, "catchup", "enabled")
	helper.Copy(up.Bool, "catchup", "initial_full_sync")
	helper.Copy(up.Str, "catchup", "item_delay")
	helper.Copy(up.Int, "catchup", "recent_limit")
	helper.Copy(up.Bool, "catchup", "recover_view_once")
	helper.Copy(up.Bool, "catchup", "detect_offline_edits")

	helper.Copy(up.Str, "media", "dir")
	helper.Copy(up.Str, "media", "temp_dir")
	helper.Copy(up.Str, "media", "temp_max_age")
	helper.Copy(up.Str, "media", "cleanup_schedule")
	helper.Copy(up.Int, "media", "max_image_dimension")
	helper.Copy(up.Int, "media", "jpeg_quality")

	helper.Copy(up.Bool, "metrics", "enabled")
	helper.Copy(up.Str, "metrics", "listen")

	helper.Copy(up.Map, "logging")
}

var spacedBlocks = [][]string{
	{"destination"},
	{"database"},
	{"cache"},
	{"mirror"},
	{"catchup"},
	{"media"},
	{"metrics"},
	{"logging"},
}

// Upgrader merges a user config file onto the example config so that new
// options get their default values.
var Upgrader = &up.StructUpgrader{
	SimpleUpgrader: upgradeConfig,
	Blocks:         spacedBlocks,
	Base:           ExampleConfig,
}

// Load reads the config at path on top of the defaults, then applies
// environment overrides. If save is true, new options are written back to the file.
func Load(path string, save bool) (*Config, error) {
	data, _, err := up.Do(path, save, Upgrader)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade config at %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config at %s: %w", path, err)
	}
	cfg.Path = path
	if err = cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a complete config document without upgrading or env overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment. Variables that are already set win. A missing file is not an
// error unless required is set.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && (required || !os.IsNotExist(err)) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, into *string) {
		if val, ok := lookup(EnvPrefix + name); ok {
			*into = strings.TrimSpace(val)
		}
	}
	var problems []string
	integer := func(name string, into *int64) {
		if val, ok := lookup(EnvPrefix + name); ok {
			parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s%s is not an integer", EnvPrefix, name))
				return
			}
			*into = parsed
		}
	}

	apiID := int64(c.Source.APIID)
	integer("API_ID", &apiID)
	c.Source.APIID = int(apiID)
	str("API_HASH", &c.Source.APIHash)
	str("PHONE", &c.Source.Phone)
	str("SESSION_FILE", &c.Source.SessionFile)
	integer("PARTNER_USER_ID", &c.Source.PartnerUserID)
	integer("GROUP_ID", &c.Destination.GroupID)
	str("SELF_BOT_TOKEN", &c.Destination.Self.Token)
	str("PEER_BOT_TOKEN", &c.Destination.Peer.Token)
	str("DATABASE_URI", &c.Database.URI)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)

	if len(problems) > 0 {
		return &mirror.ConfigurationError{Problems: problems}
	}
	return nil
}

// Validate checks everything needed to start mirroring and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Source.APIID <= 0 {
		add("source.api_id must be set")
	}
	if c.Source.APIHash == "" {
		add("source.api_hash must be set")
	}
	if c.Source.SessionFile == "" {
		add("source.session_file must be set")
	}
	if c.Source.PartnerUserID == 0 {
		add("source.partner_user_id must be set")
	}
	if c.Source.HistoryBatchSize < 1 || c.Source.HistoryBatchSize > 100 {
		add("source.history_batch_size must be between 1 and 100")
	}

	if c.Destination.GroupID == 0 {
		add("destination.group_id must be set")
	}
	if c.Destination.Self.Token == "" {
		add("destination.self.token must be set")
	}
	if c.Destination.Peer.Token == "" {
		add("destination.peer.token must be set")
	}
	if c.Destination.Self.Token != "" && c.Destination.Self.Token == c.Destination.Peer.Token {
		add("destination.self and destination.peer must use different bots")
	}

	switch c.Database.Type {
	case "sqlite3", "postgres":
	default:
		add("database.type must be sqlite3 or postgres, got %q", c.Database.Type)
	}
	if c.Database.URI == "" {
		add("database.uri must be set")
	}

	switch c.Cache.Type {
	case "", "none", "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr must be set when cache.type is redis")
		}
	default:
		add("cache.type must be none, memory or redis, got %q", c.Cache.Type)
	}

	if c.Mirror.Retry.Attempts < 1 {
		add("mirror.retry.attempts must be at least 1")
	}
	if c.Mirror.Retry.InitialDelay <= 0 || c.Mirror.Retry.MaxDelay < c.Mirror.Retry.InitialDelay {
		add("mirror.retry delays must be positive and max_delay must not be below initial_delay")
	}
	if c.CatchUp.ItemDelay < 0 {
		add("catchup.item_delay must not be negative")
	}

	if c.Media.Dir == "" || c.Media.TempDir == "" {
		add("media.dir and media.temp_dir must be set")
	}
	if c.Media.CleanupSchedule != "" && !gronx.IsValid(c.Media.CleanupSchedule) {
		add("media.cleanup_schedule %q is not a valid cron expression", c.Media.CleanupSchedule)
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		add("media.jpeg_quality must be between 1 and 100")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		add("metrics.listen must be set when metrics are enabled")
	}

	if len(problems) > 0 {
		return &mirror.ConfigurationError{Problems: problems}
	}
	return nil
}
