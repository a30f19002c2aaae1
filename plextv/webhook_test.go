package plextv

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesati/goplex/plex"
)

const webhooksXML = `<webhooks>
  <webhook url="https://hooks.example.com/plex"/>
  <webhook url="https://alerts.example.com/ingest"/>
</webhooks>`

// webhookServer records the webhook list posted by the client and answers
// GETs with the current fixture.
func webhookServer(t *testing.T) (*Account, *[][]string) {
	t.Helper()
	var posts [][]string
	_, account := newTestAccount(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/user/webhooks", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			xmlResponse(t, w, webhooksXML)
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			if r.PostForm.Has("urls") {
				posts = append(posts, []string{})
			} else {
				posts = append(posts, r.PostForm["urls[]"])
			}
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	})
	return account, &posts
}

func TestWebhooks(t *testing.T) {
	account, posts := webhookServer(t)

	urls, err := account.Webhooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://hooks.example.com/plex",
		"https://alerts.example.com/ingest",
	}, urls)
	assert.Empty(t, *posts)
}

func TestSetWebhooks(t *testing.T) {
	account, posts := webhookServer(t)
	ctx := context.Background()

	t.Run("replace list", func(t *testing.T) {
		urls, err := account.SetWebhooks(ctx, []string{"https://new.example.com/hook"})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://new.example.com/hook"}, urls)
		require.Len(t, *posts, 1)
		assert.Equal(t, []string{"https://new.example.com/hook"}, (*posts)[0])
	})

	t.Run("clear list", func(t *testing.T) {
		urls, err := account.SetWebhooks(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, urls)
		require.Len(t, *posts, 2)
		assert.Empty(t, (*posts)[1])
	})
}

func TestAddWebhook(t *testing.T) {
	account, posts := webhookServer(t)

	_, err := account.AddWebhook(context.Background(), "https://third.example.com/hook")
	require.NoError(t, err)

	require.Len(t, *posts, 1)
	assert.Equal(t, []string{
		"https://hooks.example.com/plex",
		"https://alerts.example.com/ingest",
		"https://third.example.com/hook",
	}, (*posts)[0])
}

func TestDeleteWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("removes one url", func(t *testing.T) {
		account, posts := webhookServer(t)

		_, err := account.DeleteWebhook(ctx, "https://hooks.example.com/plex")
		require.NoError(t, err)

		require.Len(t, *posts, 1)
		assert.Equal(t, []string{"https://alerts.example.com/ingest"}, (*posts)[0])
	})

	t.Run("unknown url", func(t *testing.T) {
		account, posts := webhookServer(t)

		_, err := account.DeleteWebhook(ctx, "https://unknown.example.com/hook")
		require.Error(t, err)
		assert.ErrorIs(t, err, plex.ErrNotFound)
		assert.Empty(t, *posts)
	})
}
