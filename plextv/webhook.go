package plextv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nesati/goplex/plex"
)

const webhooksPath = "/api/v2/user/webhooks"

// Webhooks lists the URLs plex.tv posts playback events to. Requires an
// active Plex Pass subscription.
func (a *Account) Webhooks(ctx context.Context) ([]string, error) {
	root, err := a.query(ctx, http.MethodGet, webhooksPath, nil)
	if err != nil {
		return nil, err
	}
	return webhookURLs(root), nil
}

// SetWebhooks replaces the whole webhook list and returns the list plex.tv
// confirmed. An empty slice clears every webhook.
func (a *Account) SetWebhooks(ctx context.Context, urls []string) ([]string, error) {
	form := url.Values{}
	if len(urls) == 0 {
		// The API interprets an empty urls value as "remove all"; omitting
		// the field entirely leaves the list untouched.
		form.Set("urls", "")
	} else {
		for _, u := range urls {
			form.Add("urls[]", u)
		}
	}

	data, err := a.doRequest(ctx, http.MethodPost, webhooksPath, nil, form)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Strs("urls", urls).Msg("updated plex.tv webhooks")

	body := strings.TrimSpace(string(data))
	if body == "" {
		return urls, nil
	}
	root, err := plex.ParseElement(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return webhookURLs(root), nil
}

// AddWebhook appends one URL to the webhook list.
func (a *Account) AddWebhook(ctx context.Context, hookURL string) ([]string, error) {
	current, err := a.Webhooks(ctx)
	if err != nil {
		return nil, err
	}
	return a.SetWebhooks(ctx, append(current, hookURL))
}

// DeleteWebhook removes one URL from the webhook list.
func (a *Account) DeleteWebhook(ctx context.Context, hookURL string) ([]string, error) {
	current, err := a.Webhooks(ctx)
	if err != nil {
		return nil, err
	}
	remaining := make([]string, 0, len(current))
	found := false
	for _, u := range current {
		if u == hookURL && !found {
			found = true
			continue
		}
		remaining = append(remaining, u)
	}
	if !found {
		return nil, fmt.Errorf("%w: webhook %q is not registered", plex.ErrNotFound, hookURL)
	}
	return a.SetWebhooks(ctx, remaining)
}

func webhookURLs(root *plex.Element) []string {
	if root == nil {
		return nil
	}
	var urls []string
	for _, wh := range root.FindAll("webhook") {
		if u, ok := wh.Attr("url"); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
