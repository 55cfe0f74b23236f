// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by store updates that match no row.
var ErrNotFound = errors.New("not found")

// Web console permission levels
const (
	PermissionNone  = 0
	PermissionUser  = 1
	PermissionAdmin = 2
)

// Leaderboard categories for the total ranking
const (
	CategoryTotal  = 0
	CategoryMobile = 1
	CategoryArcade = 2
)

// Domain types

type Account struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"password_hash"`
	SaveCRC       *string    `json:"save_crc"`
	SaveTimestamp *time.Time `json:"save_timestamp"`
	SaveID        *string    `json:"save_id"`
	CoinMP        int        `json:"coin_mp"`
	Title         int        `json:"title"`
	Avatar        int        `json:"avatar"`
	MobileDelta   int64      `json:"mobile_delta"`
	ArcadeDelta   int64      `json:"arcade_delta"`
	TotalDelta    int64      `json:"total_delta"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Device struct {
	DeviceID       string     `json:"device_id"`
	UserID         *int64     `json:"user_id"`
	Stages         []int      `json:"my_stage"`
	Avatars        []int      `json:"my_avatar"`
	Items          []int      `json:"item"`
	DailyDay       int        `json:"daily_day"`
	DailyTimestamp time.Time  `json:"daily_timestamp"`
	Coin           int        `json:"coin"`
	Level          int        `json:"lvl"`
	Title          int        `json:"title"`
	Avatar         int        `json:"avatar"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	BindToken      *string    `json:"bind_token"`
}

type Bind struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Account    string    `json:"bind_account"`
	Code       string    `json:"bind_code"`
	Secret     *string   `json:"-"`
	IsVerified bool      `json:"is_verified"`
	BindDate   time.Time `json:"bind_date"`
}

type Result struct {
	ID         int64           `json:"id"`
	DeviceID   string          `json:"device_id"`
	UserID     int64           `json:"user_id"`
	Stats      json.RawMessage `json:"stts"`
	SongID     int             `json:"song_id"`
	Mode       int             `json:"mode"`
	Avatar     int             `json:"avatar"`
	Score      int64           `json:"score"`
	HighScore  json.RawMessage `json:"high_score"`
	PlayResult json.RawMessage `json:"play_rslt"`
	Item       int             `json:"item"`
	OS         string          `json:"os"`
	OSVersion  string          `json:"os_ver"`
	Version    string          `json:"ver"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Delta is the change applied to an account's ranking counters.
type Delta struct {
	Mobile int64
	Arcade int64
	Total  int64
}

// RankRecord is one cached leaderboard row. For song boards ID is the
// result row id; for category boards it is the account id.
type RankRecord struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"user_id"`
	Score     int64  `json:"score"`
	Avatar    int    `json:"avatar"`
	Username  string `json:"username,omitempty"`
	Title     int    `json:"title,omitempty"`
}

// Wallet is the mutable part of a device row, loaded and persisted as a unit.
type Wallet struct {
	DeviceID       string
	AccountID      *int64
	Coin           int
	Stages         []int
	Avatars        []int
	Items          []int
	DailyDay       int
	DailyTimestamp time.Time
	Level          int
	Avatar         int
}

type WebSession struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Permission     int       `json:"permission"`
	Token          string    `json:"web_token"`
	LastSaveExport int64     `json:"last_save_export"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type BatchToken struct {
	ID        int64     `json:"id"`
	Token     string    `json:"batch_token"`
	ExpireAt  time.Time `json:"expire_at"`
	UsesLeft  int       `json:"uses_left"`
	AuthID    string    `json:"auth_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Messages carries the four client languages.
type Messages struct {
	Ja string `xml:"ja" json:"ja"`
	En string `xml:"en" json:"en"`
	Fr string `xml:"fr" json:"fr"`
	It string `xml:"it" json:"it"`
}

// Notice is the maintenance notice merged into the start response.
type Notice struct {
	Code    int      `xml:"code" json:"status"`
	Message Messages `xml:"message" json:"message"`
}

// Request types

type RankingRequest struct {
	SongID *int `json:"song_id"`
	Mode   *int `json:"mode"`
	Page   int  `json:"page"`
}

type ShopItemRequest struct {
	Mode   *int `json:"mode"`
	ItemID *int `json:"item_id"`
}

type SetTitleRequest struct {
	Title *int `json:"title"`
}

type BatchRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type WebLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserCenterRequest struct {
	Token  string      `json:"token"`
	Action string      `json:"action"`
	UserID json.Number `json:"user_id"`
}

type DiscordBindRequest struct {
	Username       string `json:"username"`
	BindCode       string `json:"bind_code"`
	DiscordAccount string `json:"discord_account"`
}

type MaintenanceRequest struct {
	Status    int    `json:"status"`
	MessageEn string `json:"message_en"`
	MessageJa string `json:"message_ja"`
	MessageFr string `json:"message_fr"`
	MessageIt string `json:"message_it"`
}

// Response types

// APIResponse is the game web-view envelope.
type APIResponse struct {
	State   int    `json:"state"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ConsoleResponse is the web console envelope.
type ConsoleResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type RankEntry struct {
	Position int    `json:"position"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
	Title    int    `json:"title"`
	Avatar   int    `json:"avatar"`
}

type RankingPage struct {
	RankingList   []RankEntry `json:"ranking_list"`
	PlayerRanking RankEntry   `json:"player_ranking"`
	TotalCount    int         `json:"total_count"`
}

type PlayerInfo struct {
	Username string `json:"username"`
	Title    int    `json:"title"`
	Avatar   int    `json:"avatar"`
	Level    int    `json:"lvl"`
}

type ShopPlayerData struct {
	Coin           int   `json:"coin"`
	StageList      []int `json:"stage_list"`
	AvatarList     []int `json:"avatar_list"`
	ItemList       []int `json:"item_list"`
	FMaxPurchased  bool  `json:"fmax_purchased"`
	ExtraPurchased bool  `json:"extra_purchased"`
}

type ShopItemData struct {
	Price          int    `json:"price"`
	PropertyFirst  string `json:"property_first"`
	PropertySecond string `json:"property_second"`
	PropertyThird  string `json:"property_third"`
}

type BatchManifest struct {
	Stage  json.RawMessage `json:"stage"`
	Audio  json.RawMessage `json:"audio"`
	Thread int             `json:"thread"`
}

// ErrorResponse is the envelope for plain JSON endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type TablePage struct {
	Data     []map[string]any `json:"data"`
	LastPage int              `json:"last_page"`
	Total    int              `json:"total"`
}

type UserCenterBasic struct {
	Username       string `json:"username"`
	NextSaveExport int64  `json:"next_save_export"`
}

// AdminRowRequest carries a row for the admin table editor.
type AdminRowRequest struct {
	Table string         `json:"table"`
	Row   map[string]any `json:"row"`
}

// AdminDeleteRequest names the row to delete by its table key.
type AdminDeleteRequest struct {
	Table    string `json:"table"`
	ID       any    `json:"id"`
	DeviceID any    `json:"device_id"`
}

type AdminSaveRequest struct {
	ID   int64  `json:"id"`
	Data string `json:"data"`
}

type AdminInsertResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	InsertedID any    `json:"inserted_id"`
}

type ReleaseInfo struct {
	Version string `json:"version"`
	Present bool   `json:"present"`
}
