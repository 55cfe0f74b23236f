// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Reward content types for login bonus days
const (
	RewardStage  = 1
	RewardAvatar = 2
)

type Song struct {
	ID               int    `yaml:"id" json:"id"`
	NameEn           string `yaml:"name_en" json:"name_en"`
	AuthorEn         string `yaml:"author_en" json:"author_en"`
	DifficultyLevels []int  `yaml:"difficulty_levels" json:"difficulty_levels"`
}

// Goods is an avatar or a consumable item.
type Goods struct {
	ID     int    `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Effect string `yaml:"effect" json:"effect"`
}

// Unlock grants a stage once the player's level reaches Level.
type Unlock struct {
	ID    int `yaml:"id" json:"id"`
	Level int `yaml:"lvl" json:"lvl"`
}

type Reward struct {
	Count   int `yaml:"count"`
	CntType int `yaml:"cnt_type"`
	CntID   int `yaml:"cnt_id"`
}

type LoginBonus struct {
	LastCount int      `yaml:"last_count"`
	Rewards   []Reward `yaml:"rewards"`
}

type TitleGroup struct {
	Name   string `yaml:"name" json:"name"`
	Titles []int  `yaml:"titles" json:"titles"`
}

// Catalog is the static game data shared by every handler.
type Catalog struct {
	StartAvatars    []int        `yaml:"start_avatars"`
	StartStages     []int        `yaml:"start_stages"`
	ExpUnlocks      []Unlock     `yaml:"exp_unlocked_songs"`
	ExcludeStageExp []int        `yaml:"exclude_stage_exp"`
	Songs           []Song       `yaml:"songs"`
	Avatars         []Goods      `yaml:"avatars"`
	Items           []Goods      `yaml:"items"`
	Titles          []TitleGroup `yaml:"titles"`
	LoginBonus      LoginBonus   `yaml:"login_bonus"`

	songs    map[int]Song
	avatars  map[int]Goods
	items    map[int]Goods
	titles   map[int]bool
	excluded map[int]bool
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and indexes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if c.LoginBonus.LastCount <= 0 {
		return nil, errors.New("catalog: login_bonus.last_count must be positive")
	}

	c.songs = make(map[int]Song, len(c.Songs))
	for _, s := range c.Songs {
		c.songs[s.ID] = s
	}
	c.avatars = make(map[int]Goods, len(c.Avatars))
	for _, a := range c.Avatars {
		c.avatars[a.ID] = a
	}
	c.items = make(map[int]Goods, len(c.Items))
	for _, it := range c.Items {
		c.items[it.ID] = it
	}
	c.titles = make(map[int]bool)
	for _, g := range c.Titles {
		for _, id := range g.Titles {
			c.titles[id] = true
		}
	}
	c.excluded = make(map[int]bool, len(c.ExcludeStageExp))
	for _, id := range c.ExcludeStageExp {
		c.excluded[id] = true
	}

	slices.Sort(c.StartStages)
	slices.Sort(c.StartAvatars)
	return &c, nil
}

func (c *Catalog) Song(id int) (Song, bool) {
	s, ok := c.songs[id]
	return s, ok
}

func (c *Catalog) Avatar(id int) (Goods, bool) {
	a, ok := c.avatars[id]
	return a, ok
}

func (c *Catalog) Item(id int) (Goods, bool) {
	it, ok := c.items[id]
	return it, ok
}

// SongName returns the English song name or "Unknown Song".
func (c *Catalog) SongName(id int) string {
	if s, ok := c.songs[id]; ok {
		return s.NameEn
	}
	return "Unknown Song"
}

// ValidTitle reports whether id appears in any title group.
func (c *Catalog) ValidTitle(id int) bool {
	return c.titles[id]
}

// ExcludedFromShop reports whether a stage is only obtainable by leveling.
func (c *Catalog) ExcludedFromShop(stage int) bool {
	return c.excluded[stage]
}

// RewardFor returns the login bonus reward for a streak day.
func (c *Catalog) RewardFor(day int) (Reward, bool) {
	for _, r := range c.LoginBonus.Rewards {
		if r.Count == day {
			return r, true
		}
	}
	return Reward{}, false
}

// UnlockedAt returns the stages unlocked at or below level.
func (c *Catalog) UnlockedAt(level int) []int {
	var ids []int
	for _, u := range c.ExpUnlocks {
		if u.Level <= level {
			ids = append(ids, u.ID)
		}
	}
	return ids
}
