// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gamexml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danielhkuo/taiyo/models"
)

// ContentType is sent with every game XML reply.
const ContentType = "application/xml"

// Header is the XML declaration some replies carry.
const Header = `<?xml version="1.0" encoding="UTF-8"?>`

// Fixed replies
const (
	InvalidRequest = `<response><code>10</code><message>Invalid request data.</message></response>`
	AccessDenied   = `<response><code>403</code><message>Access denied.</message></response>`
	OK             = `<response><code>0</code></response>`
	AlreadyClaimed = `<response><code>1</code></response>`
	Empty          = Header + OK
	DeleteAccount  = Header + `<response><code>0</code><taito_id></taito_id></response>`
)

// Status codes used by the save endpoints.
const (
	CodeOK        = 0
	CodeClaimed   = 1
	CodeNoAccount = 10
	CodeNoSave    = 12
	CodeForbidden = 403
	CodeInternal  = 500
)

var (
	NeedAccount = models.Messages{
		Ja: "この機能を使用するには、まずアカウントを登録する必要があります。",
		En: "You need to register an account first before this feature can be used.",
		Fr: "Vous devez d'abord créer un compte avant de pouvoir utiliser cette fonctionnalité.",
		It: "È necessario registrare un account prima di poter utilizzare questa funzione.",
	}
	CannotAccess = models.Messages{
		Ja: "この機能を使用するには、現在アクセスできません。",
		En: "You cannot access this feature right now.",
		Fr: "Vous ne pouvez pas accéder à cette fonctionnalité pour le moment.",
		It: "Non è possibile accedere a questa funzione in questo momento.",
	}
	NoSaveData = models.Messages{
		Ja: "セーブデータが無いか、セーブデータが破損しているため、ロードできませんでした。",
		En: "Unable to load; either no save data exists, or the save data is corrupted.",
		Fr: "Chargement impossible : les données de sauvegarde sont absentes ou corrompues.",
		It: "Impossibile caricare. Non esistono dati salvati o quelli esistenti sono danneggiati.",
	}
)

// Pak points the client at one of its three resource packs.
type Pak struct {
	Date string `xml:"date"`
	URL  string `xml:"url"`
}

// Stage is one owned stage. ACMode 1 marks it playable.
type Stage struct {
	StageID int `xml:"stage_id"`
	ACMode  int `xml:"ac_mode"`
}

// AddItem delivers a purchased consumable.
type AddItem struct {
	ID  int `xml:"id"`
	Num int `xml:"num"`
}

type Reward struct {
	Count   int `xml:"count"`
	CntType int `xml:"cnt_type"`
	CntID   int `xml:"cnt_id"`
}

type LoginBonus struct {
	LastCount int      `xml:"last_count"`
	NowCount  int      `xml:"now_count"`
	Rewards   []Reward `xml:"reward"`
}

// Builder appends elements to a <response> document in call order.
// The first encoding error sticks and is returned by Bytes.
type Builder struct {
	buf    bytes.Buffer
	enc    *xml.Encoder
	err    error
	header bool
}

var root = xml.StartElement{Name: xml.Name{Local: "response"}}

// NewResponse starts a document.
func NewResponse() *Builder {
	b := &Builder{}
	b.enc = xml.NewEncoder(&b.buf)
	b.err = b.enc.EncodeToken(root)
	return b
}

// WithHeader starts a document that carries the XML declaration.
func WithHeader() *Builder {
	b := NewResponse()
	b.header = true
	return b
}

// Element appends <name>v</name>. Structs are encoded field by field.
func (b *Builder) Element(name string, v any) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.enc.EncodeElement(v, xml.StartElement{Name: xml.Name{Local: name}})
	return b
}

// Avatars appends one my_avatar element per id.
func (b *Builder) Avatars(ids []int) *Builder {
	for _, id := range ids {
		b.Element("my_avatar", id)
	}
	return b
}

// Stages appends one playable my_stage element per id.
func (b *Builder) Stages(ids []int) *Builder {
	for _, id := range ids {
		b.Element("my_stage", Stage{StageID: id, ACMode: 1})
	}
	return b
}

// StageZero appends the placeholder stage linked accounts receive.
func (b *Builder) StageZero() *Builder {
	return b.Element("my_stage", Stage{})
}

// Bytes closes the document and returns it.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", b.err)
	}
	if err := b.enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("failed to close response: %w", err)
	}
	if err := b.enc.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush response: %w", err)
	}
	if b.header {
		return append([]byte(Header), b.buf.Bytes()...), nil
	}
	return b.buf.Bytes(), nil
}

// Status builds <response><code>code</code><message>...</message></response>
// with the four client languages.
func Status(code int, m models.Messages) []byte {
	out, err := NewResponse().Element("code", code).Element("message", m).Bytes()
	if err != nil {
		// Only strings and ints are encoded here.
		panic(err)
	}
	return out
}

// ServerError builds a code 500 reply with a plain message.
func ServerError(message string) []byte {
	out, err := NewResponse().Element("code", CodeInternal).Element("message", message).Bytes()
	if err != nil {
		panic(err)
	}
	return out
}

// Load builds the successful load.php reply.
func Load(data, crc string, savedAt *time.Time) ([]byte, error) {
	date := "None"
	if savedAt != nil {
		date = Timestamp(*savedAt)
	}
	if crc == "" {
		crc = "None"
	}
	return WithHeader().
		Element("code", CodeOK).
		Element("data", data).
		Element("crc", crc).
		Element("date", date).
		Bytes()
}

// Timestamp formats t the way the client expects save dates:
// "2006-01-02 15:04:05" with microseconds appended only when non-zero.
func Timestamp(t time.Time) string {
	s := t.Format(time.DateTime)
	if us := t.Nanosecond() / 1000; us != 0 {
		s += "." + fmt.Sprintf("%06d", us)
	}
	return s
}

// Code is a bare reply carrying only a status code.
func Code(code int) []byte {
	return []byte("<response><code>" + strconv.Itoa(code) + "</code></response>")
}

type noticeDoc struct {
	XMLName xml.Name `xml:"response"`
	models.Notice
}

// ReadNotice loads the maintenance notice at path. A missing file means
// no notice and returns nil.
func ReadNotice(path string) (*models.Notice, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notice: %w", err)
	}
	var doc noticeDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse notice: %w", err)
	}
	return &doc.Notice, nil
}

// WriteNotice replaces the maintenance notice at path.
func WriteNotice(path string, n models.Notice) error {
	out, err := xml.MarshalIndent(noticeDoc{Notice: n}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode notice: %w", err)
	}
	out = append([]byte(Header+"\n"), out...)
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write notice: %w", err)
	}
	return nil
}
