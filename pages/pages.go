// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Image selects the title banner of an inform page.
type Image int

const (
	ImageTaitoID Image = iota
	ImageInformation
	ImageBuy
	ImageTitle
	ImageRank
	ImageMission
	ImageShop
)

var imageFiles = [...]string{
	"ttl_taitoid.png",
	"ttl_information.png",
	"ttl_buy.png",
	"ttl_title.png",
	"ttl_rank.png",
	"ttl_mission.png",
	"ttl_shop.png",
}

// Path returns the public URL of the banner.
func (i Image) Path() string {
	if i < 0 || int(i) >= len(imageFiles) {
		i = ImageTaitoID
	}
	return "/files/web/" + imageFiles[i]
}

// DiscordInvite is shown on the profile page in Discord bind mode.
const DiscordInvite = "https://discord.gg/vugfJdc2rk"

// BindView is the bind section of the profile page.
type BindView struct {
	Verified bool
	Account  string
	Code     string
}

type Profile struct {
	Query    string
	Username string
	CoinMP   int
	SaveID   string
	// Mode is the authorization mode: 0 none, 1 email, 2 discord.
	Mode int
	Bind BindView
}

type MissionRow struct {
	Level int
	Song  string
}

// Shell is a web view whose content is filled in by a script calling
// the JSON API with Payload.
type Shell struct {
	Title   string
	Host    string
	Payload string
	Image   string
	Script  string
}

type Renderer struct {
	t *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

// Render executes the named template into w as text/html. The page is
// buffered so a template error never produces a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Inform renders a one-message page. Lines in text are separated by <br>;
// everything else in text is escaped.
func (r *Renderer) Inform(w http.ResponseWriter, text string, image Image) {
	lines := strings.Split(text, "<br>")
	for i, l := range lines {
		lines[i] = template.HTMLEscapeString(l)
	}
	r.Render(w, http.StatusOK, "inform.html", struct {
		Text  template.HTML
		Image string
	}{template.HTML(strings.Join(lines, "<br>")), image.Path()})
}

func (r *Renderer) Register(w http.ResponseWriter, query string) {
	r.Render(w, http.StatusOK, "register.html", struct{ Query string }{query})
}

func (r *Renderer) Profile(w http.ResponseWriter, p Profile) {
	r.Render(w, http.StatusOK, "profile.html", struct {
		Profile
		Multipliers   []int
		DiscordInvite string
	}{p, []int{0, 1, 2, 3, 4, 5}, DiscordInvite})
}

func (r *Renderer) Mission(w http.ResponseWriter, rows []MissionRow) {
	r.Render(w, http.StatusOK, "mission.html", rows)
}

func (r *Renderer) Shell(w http.ResponseWriter, s Shell) {
	r.Render(w, http.StatusOK, "shell.html", s)
}

// History renders the info page. Both /info.php and /history.php serve it.
func (r *Renderer) History(w http.ResponseWriter, simultaneousLogins int) {
	r.Render(w, http.StatusOK, "history.html", simultaneousLogins)
}

func (r *Renderer) Login(w http.ResponseWriter) {
	r.Render(w, http.StatusOK, "login.html", nil)
}

// UserCenter renders the console home; admins get a link to the panel.
func (r *Renderer) UserCenter(w http.ResponseWriter, admin bool) {
	r.Render(w, http.StatusOK, "user.html", admin)
}

func (r *Renderer) Admin(w http.ResponseWriter, tables []string) {
	r.Render(w, http.StatusOK, "admin.html", tables)
}
