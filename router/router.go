// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/taiyo/handlers"
	"github.com/danielhkuo/taiyo/mailer"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/pages"
	"github.com/danielhkuo/taiyo/rankcache"
	"github.com/danielhkuo/taiyo/ranking"
	"github.com/danielhkuo/taiyo/release"
	"github.com/danielhkuo/taiyo/shop"
)

// Services are the long-lived collaborators built in main.
type Services struct {
	Deps    handlers.Deps
	Cache   rankcache.Cache
	Release *release.Tracker
	// Mailer may be nil when SMTP is not configured.
	Mailer *mailer.Mailer
}

// NewRouter returns the complete handler: every route behind panic
// recovery, CORS and response compression.
func NewRouter(s Services) http.Handler {
	mux := http.NewServeMux()
	d := s.Deps

	// Initialize handlers
	rankEngine := ranking.NewEngine(d.Store, s.Cache, d.Catalog, d.Config.CoinReward)
	shopEngine := shop.NewEngine(d.Store, d.Resolver, d.Catalog, d.Config.Prices(), s.Release)

	gameHandler := handlers.NewGameHandler(d)
	rankingHandler := handlers.NewRankingHandler(d, rankEngine)
	shopHandler := handlers.NewShopHandler(d, shopEngine)
	accountHandler := handlers.NewAccountHandler(d, s.Mailer)
	saveHandler := handlers.NewSaveHandler(d)
	fileHandler := handlers.NewFileHandler(d)
	discordHandler := handlers.NewDiscordHandler(d)
	webHandler := handlers.NewWebHandler(d)
	adminHandler := handlers.NewAdminHandler(d, s.Release)

	stage := middleware.NewIdentityStage(d.Resolver, d.Policy)
	game := func(gate middleware.Gate, reject middleware.RejectFunc, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(stage.Wrap(gate, reject, h))
	}
	account := handlers.RejectAccount(d.Pages)
	rankPage := handlers.RejectInform(d.Pages, pages.ImageRank)
	titlePage := handlers.RejectInform(d.Pages, pages.ImageTitle)
	shopPage := handlers.RejectInform(d.Pages, pages.ImageShop)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Launch and sync
	mux.HandleFunc("GET /start.php", game(middleware.GateInit, handlers.RejectXML, gameHandler.Start))
	mux.HandleFunc("GET /sync.php", game(middleware.GateInit, handlers.RejectXML, gameHandler.Sync))
	mux.HandleFunc("POST /sync.php", game(middleware.GateInit, handlers.RejectXML, gameHandler.Sync))
	mux.HandleFunc("GET /login_bonus.php", game(middleware.GateInit, handlers.RejectXML, gameHandler.LoginBonus))
	mux.HandleFunc("GET /info.php", middleware.WithLogging(gameHandler.History))
	mux.HandleFunc("GET /history.php", middleware.WithLogging(gameHandler.History))
	mux.HandleFunc("GET /delete_account.php", middleware.WithLogging(gameHandler.DeleteAccount))
	mux.HandleFunc("GET /confirm_tier.php", middleware.WithLogging(gameHandler.ConfirmTier))
	mux.HandleFunc("GET /gcm/php/register.php", middleware.WithLogging(gameHandler.GCMRegister))

	// Results and saves
	mux.HandleFunc("GET /result.php", game(middleware.GateFull, handlers.RejectXML, rankingHandler.Result))
	mux.HandleFunc("GET /load.php", game(middleware.GateFull, handlers.RejectSave, saveHandler.Load))
	mux.HandleFunc("POST /save.php", game(middleware.GateFull, handlers.RejectSave, saveHandler.Save))

	// Account pages
	mux.HandleFunc("GET /ttag.php", game(middleware.GateNone, account, accountHandler.TTag))
	mux.HandleFunc("POST /register/{$}", game(middleware.GateNone, account, accountHandler.Register))
	mux.HandleFunc("POST /login/{$}", game(middleware.GateNone, account, accountHandler.Login))
	mux.HandleFunc("POST /logout/{$}", game(middleware.GateNone, account, accountHandler.Logout))
	mux.HandleFunc("POST /name_reset/{$}", game(middleware.GateNone, account, accountHandler.NameReset))
	mux.HandleFunc("POST /password_reset/{$}", game(middleware.GateNone, account, accountHandler.PasswordReset))
	mux.HandleFunc("POST /coin_mp/{$}", game(middleware.GateNone, account, accountHandler.CoinMP))
	mux.HandleFunc("POST /save_migration/{$}", game(middleware.GateFull, account, accountHandler.SaveMigration))
	mux.HandleFunc("POST /send_email/{$}", game(middleware.GateNone, account, accountHandler.SendEmail))
	mux.HandleFunc("POST /verify/{$}", game(middleware.GateNone, account, accountHandler.Verify))

	// Web views
	mux.HandleFunc("GET /mission.php", game(middleware.GateFull, rankPage, rankingHandler.Mission))
	mux.HandleFunc("GET /status.php", game(middleware.GateFull, titlePage, rankingHandler.Status))
	mux.HandleFunc("GET /ranking.php", game(middleware.GateFull, rankPage, rankingHandler.Ranking))
	mux.HandleFunc("GET /web_shop.php", game(middleware.GateFull, shopPage, shopHandler.WebShop))
	mux.HandleFunc("POST /web_shop.php", game(middleware.GateFull, shopPage, shopHandler.WebShop))

	// Web view JSON APIs
	mux.HandleFunc("GET /api/status/title_list", game(middleware.GateFull, handlers.RejectJSON, rankingHandler.TitleList))
	mux.HandleFunc("POST /api/status/set_title", game(middleware.GateFull, handlers.RejectJSON, rankingHandler.SetTitle))
	mux.HandleFunc("GET /api/ranking/song_list", game(middleware.GateFull, handlers.RejectJSON, rankingHandler.SongList))
	mux.HandleFunc("POST /api/ranking/individual", game(middleware.GateFull, handlers.RejectJSON, rankingHandler.Individual))
	mux.HandleFunc("POST /api/ranking/total", game(middleware.GateFull, handlers.RejectJSON, rankingHandler.Total))
	mux.HandleFunc("GET /api/shop/player_data", game(middleware.GateFull, handlers.RejectJSON, shopHandler.PlayerData))
	mux.HandleFunc("POST /api/shop/item_data", game(middleware.GateFull, handlers.RejectJSON, shopHandler.ItemData))
	mux.HandleFunc("POST /api/shop/purchase_item", game(middleware.GateFull, handlers.RejectJSON, shopHandler.PurchaseItem))

	// Files
	mux.HandleFunc("GET /files/gc2/{token}/{folder}/{filename}", middleware.WithLogging(fileHandler.Asset))
	mux.HandleFunc("GET /files/{path...}", middleware.WithLogging(fileHandler.Public))
	if d.Config.BatchEnabled {
		mux.HandleFunc("POST /batch", middleware.WithLogging(fileHandler.Batch))
	}

	// Discord bot
	mux.HandleFunc("POST /discord/bind", middleware.WithLogging(discordHandler.Bind))

	// Web console
	mux.HandleFunc("GET /login", middleware.WithLogging(webHandler.LoginPage))
	mux.HandleFunc("GET /login/{$}", middleware.WithLogging(webHandler.LoginPage))
	mux.HandleFunc("POST /login/login", middleware.WithLogging(webHandler.Login))
	mux.HandleFunc("GET /usercenter", middleware.WithLogging(webHandler.UserCenter))
	mux.HandleFunc("POST /usercenter/api", middleware.WithLogging(webHandler.API))
	mux.HandleFunc("GET /usercenter/export_data", middleware.WithLogging(webHandler.Export))

	// Admin panel
	mux.HandleFunc("GET /admin", middleware.WithLogging(adminHandler.Page))
	mux.HandleFunc("GET /admin/{$}", middleware.WithLogging(adminHandler.Page))
	mux.HandleFunc("GET /admin/table", middleware.WithLogging(adminHandler.Table))
	mux.HandleFunc("POST /admin/table/update", middleware.WithLogging(adminHandler.Update))
	mux.HandleFunc("POST /admin/table/insert", middleware.WithLogging(adminHandler.Insert))
	mux.HandleFunc("POST /admin/table/delete", middleware.WithLogging(adminHandler.Delete))
	mux.HandleFunc("GET /admin/data", middleware.WithLogging(adminHandler.Data))
	mux.HandleFunc("POST /admin/data/save", middleware.WithLogging(adminHandler.SaveData))
	mux.HandleFunc("POST /admin/update_maintenance", middleware.WithLogging(adminHandler.UpdateMaintenance))
	mux.HandleFunc("POST /admin/release/refresh", middleware.WithLogging(adminHandler.RefreshRelease))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("taiyo game server"))
	})

	return middleware.Recover(middleware.CORS(middleware.Gzip(mux)))
}
