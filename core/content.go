package core

import "encoding/json"

type ContentKind string

const (
	ContentKindText     ContentKind = "text"
	ContentKindDocument ContentKind = "document"
	ContentKindContact  ContentKind = "contacts"
	ContentKindLocation ContentKind = "location"
	ContentKindImage    ContentKind = "image"
	ContentKindVideo    ContentKind = "video"
	ContentKindAudio    ContentKind = "audio"
	ContentKindUnknown  ContentKind = "unknown"
)

// Content is the closed set of payloads a user message can carry.
type Content interface {
	Kind() ContentKind
	content()
}

type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) Kind() ContentKind { return ContentKindText }
func (TextContent) content()          {}

type DocumentContent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mime   string `json:"mime"`
	Sha256 string `json:"sha256"`
}

func (DocumentContent) Kind() ContentKind { return ContentKindDocument }
func (DocumentContent) content()          {}

type ContactContent struct {
	Name    string   `json:"name"`
	Surname string   `json:"surname"`
	Numbers []string `json:"numbers"`
}

func (ContactContent) Kind() ContentKind { return ContentKindContact }
func (ContactContent) content()          {}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type LocationContent struct {
	Location Location `json:"location"`
	Address  string   `json:"address,omitempty"`
	Name     string   `json:"name,omitempty"`
	URL      string   `json:"url,omitempty"`
}

func (LocationContent) Kind() ContentKind { return ContentKindLocation }
func (LocationContent) content()          {}

// MediaContent is the shape shared by image, video and audio payloads.
type MediaContent struct {
	ID     string `json:"id"`
	Mime   string `json:"mime"`
	Sha256 string `json:"sha256"`
}

type ImageContent struct{ MediaContent }

func (ImageContent) Kind() ContentKind { return ContentKindImage }
func (ImageContent) content()          {}

type VideoContent struct{ MediaContent }

func (VideoContent) Kind() ContentKind { return ContentKindVideo }
func (VideoContent) content()          {}

type AudioContent struct{ MediaContent }

func (AudioContent) Kind() ContentKind { return ContentKindAudio }
func (AudioContent) content()          {}

type UnknownContent struct {
	Raw json.RawMessage `json:"raw"`
}

func (UnknownContent) Kind() ContentKind { return ContentKindUnknown }
func (UnknownContent) content()          {}

// Media returns the media descriptor for image, video, audio and document
// content.
func Media(c Content) (MediaContent, bool) {
	switch typed := c.(type) {
	case ImageContent:
		return typed.MediaContent, true
	case VideoContent:
		return typed.MediaContent, true
	case AudioContent:
		return typed.MediaContent, true
	case DocumentContent:
		return MediaContent{ID: typed.ID, Mime: typed.Mime, Sha256: typed.Sha256}, true
	}
	return MediaContent{}, false
}

var (
	_ Content = TextContent{}
	_ Content = DocumentContent{}
	_ Content = ContactContent{}
	_ Content = LocationContent{}
	_ Content = ImageContent{}
	_ Content = VideoContent{}
	_ Content = AudioContent{}
	_ Content = UnknownContent{}
)
