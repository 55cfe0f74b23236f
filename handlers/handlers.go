// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/danielhkuo/taiyo/catalog"
	"github.com/danielhkuo/taiyo/cliparse"
	"github.com/danielhkuo/taiyo/gamexml"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/pages"
	"github.com/danielhkuo/taiyo/policy"
	"github.com/danielhkuo/taiyo/savefile"
	"github.com/danielhkuo/taiyo/store"
)

// Deps is what every handler shares.
type Deps struct {
	Store    *store.Store
	Config   cliparse.Config
	Catalog  *catalog.Catalog
	Resolver *identity.Resolver
	Policy   *policy.Evaluator
	Pages    *pages.Renderer
	Saves    *savefile.Store
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewDeps wires the shared collaborators over an open database.
func NewDeps(conn *sql.DB, cfg cliparse.Config) (Deps, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return Deps{}, err
	}
	renderer, err := pages.New()
	if err != nil {
		return Deps{}, err
	}
	saves, err := savefile.New(cfg.SaveDir)
	if err != nil {
		return Deps{}, err
	}

	st := store.New(conn)
	return Deps{
		Store:    st,
		Config:   cfg,
		Catalog:  cat,
		Resolver: identity.NewResolver(st, nil),
		Policy:   policy.NewEvaluator(cfg.Policy(), st),
		Pages:    renderer,
		Saves:    saves,
	}, nil
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// createDevice registers a device with the starting entitlements. An
// existing device is left as it is.
func (d Deps) createDevice(ctx context.Context, deviceID string) error {
	_, err := d.Store.CreateDevice(ctx, store.NewDevice{
		DeviceID: deviceID,
		Stages:   d.Catalog.StartStages,
		Avatars:  d.Catalog.StartAvatars,
		Coin:     d.Config.StartCoin,
		Now:      d.now(),
	})
	return err
}

// caller returns the identity resolved by the identity stage. Handlers
// mounted without the stage see an empty identity.
func caller(r *http.Request) *identity.Identity {
	if id, ok := identity.FromContext(r.Context()); ok {
		return id
	}
	return &identity.Identity{}
}

func writeXML(w http.ResponseWriter, body []byte) {
	middleware.XMLResponse(w, http.StatusOK, body)
}

func writeXMLString(w http.ResponseWriter, body string) {
	middleware.XMLResponse(w, http.StatusOK, []byte(body))
}

// daysBetween counts calendar days from a to b in b's location.
func daysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// nextDay advances a login streak, wrapping past last back to 1.
func nextDay(day, last int) int {
	day++
	if day > last {
		return 1
	}
	return day
}

// RejectXML answers refused game requests with the fixed XML replies.
func RejectXML(w http.ResponseWriter, r *http.Request, reason middleware.Rejection) {
	switch reason {
	case middleware.RejectInvalid:
		writeXMLString(w, gamexml.InvalidRequest)
	case middleware.RejectDenied:
		writeXMLString(w, gamexml.AccessDenied)
	default:
		writeXML(w, gamexml.ServerError("Internal server error."))
	}
}

// RejectSave answers refused save and load requests.
func RejectSave(w http.ResponseWriter, r *http.Request, reason middleware.Rejection) {
	switch reason {
	case middleware.RejectInvalid:
		writeXML(w, gamexml.Status(gamexml.CodeNoAccount, gamexml.NeedAccount))
	case middleware.RejectDenied:
		writeXML(w, gamexml.Status(gamexml.CodeNoAccount, gamexml.CannotAccess))
	default:
		writeXML(w, gamexml.ServerError("Internal server error."))
	}
}

// RejectJSON answers refused game API requests.
func RejectJSON(w http.ResponseWriter, r *http.Request, reason middleware.Rejection) {
	switch reason {
	case middleware.RejectInvalid:
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid request data", nil)
	case middleware.RejectDenied:
		middleware.APIResponse(w, http.StatusForbidden, 0, "Access denied", nil)
	default:
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Internal server error", nil)
	}
}

// RejectInform answers refused web view requests with an inform page.
func RejectInform(p *pages.Renderer, image pages.Image) middleware.RejectFunc {
	return func(w http.ResponseWriter, r *http.Request, reason middleware.Rejection) {
		switch reason {
		case middleware.RejectInvalid:
			p.Inform(w, "Invalid request data", image)
		case middleware.RejectDenied:
			p.Inform(w, "Access denied", image)
		default:
			p.Inform(w, "Internal server error", image)
		}
	}
}

// RejectAccount answers refused account form posts.
func RejectAccount(p *pages.Renderer) middleware.RejectFunc {
	return func(w http.ResponseWriter, r *http.Request, reason middleware.Rejection) {
		switch reason {
		case middleware.RejectInvalid:
			p.Inform(w, msgInvalidRequest, pages.ImageTaitoID)
		case middleware.RejectDenied:
			p.Inform(w, "FAILED:<br>You cannot access this feature right now.", pages.ImageTaitoID)
		default:
			p.Inform(w, msgInternal, pages.ImageTaitoID)
		}
	}
}
