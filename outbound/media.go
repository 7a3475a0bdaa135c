package outbound

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-whatsapp/core"
)

// MediaReference is the short-lived download descriptor for an uploaded
// media id.
type MediaReference struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	MimeType         string `json:"mime_type"`
	Sha256           string `json:"sha256"`
	FileSize         int64  `json:"file_size"`
	MessagingProduct string `json:"messaging_product"`
}

// ResolveMedia looks up the download URL for mediaID.
func (c *Client) ResolveMedia(ctx context.Context, endpointID string, mediaID string) (ref MediaReference, err error) {
	startedAt := time.Now()
	defer func() {
		c.observer.Observe(ctx, startedAt, "outbound.resolve_media", err, map[string]any{"endpoint_id": endpointID})
	}()

	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return MediaReference{}, outboundBadInput("outbound: media id is required", nil)
	}
	rc, err := c.NewAuthenticatedClient(endpointID)
	if err != nil {
		return MediaReference{}, err
	}
	var failure errorResponse
	resp, err := rc.R().
		SetContext(ctx).
		SetResult(&ref).
		SetError(&failure).
		Get("/" + mediaID)
	if err != nil {
		if core.IsCanceled(err) {
			return MediaReference{}, err
		}
		return MediaReference{}, graphFailure(err, 0, nil, "resolve_media", endpointID)
	}
	if resp.IsError() {
		return MediaReference{}, graphFailure(responseError(resp.StatusCode(), failure), resp.StatusCode(), resp.Header(), "resolve_media", endpointID)
	}
	return ref, nil
}

// ResolveEventMedia resolves the media attached to a content event.
func (c *Client) ResolveEventMedia(ctx context.Context, ev core.ContentEvent) (MediaReference, error) {
	media, ok := core.Media(ev.Content)
	if !ok {
		return MediaReference{}, outboundBadInput("outbound: event carries no media", map[string]any{"event_id": ev.ID})
	}
	return c.ResolveMedia(ctx, ev.To.EndpointID, media.ID)
}

// Download fetches the bytes behind ref. The URL requires the same bearer
// token as the lookup.
func (c *Client) Download(ctx context.Context, endpointID string, ref MediaReference) ([]byte, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return nil, outboundBadInput("outbound: media url is required", map[string]any{"media_id": ref.ID})
	}
	rc, err := c.NewAuthenticatedClient(endpointID)
	if err != nil {
		return nil, err
	}
	var failure errorResponse
	resp, err := rc.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		SetError(&failure).
		Get(ref.URL)
	if err != nil {
		if core.IsCanceled(err) {
			return nil, err
		}
		return nil, graphFailure(err, 0, nil, "download_media", endpointID)
	}
	if resp.IsError() {
		return nil, graphFailure(responseError(resp.StatusCode(), failure), resp.StatusCode(), resp.Header(), "download_media", endpointID)
	}
	return resp.Body(), nil
}
