package msgraph

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// Teams reads the messages of one channel.
//
// Settings: team_id, channel_id and either access_token or client
// credentials with ChannelMessage.Read.All.
type Teams struct {
	opts Options
}

// NewTeams creates a Teams connector.
func NewTeams(opts Options) *Teams {
	return &Teams{opts: opts}
}

type message struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdDateTime"`
	Subject   string `json:"subject"`
	Body      struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	From struct {
		User struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
	} `json:"from"`
}

// Load implements connectors.Connector.
func (t *Teams) Load(ctx context.Context, cfg connectors.Config) ([]chunk.Document, error) {
	if err := cfg.Require("team_id", "channel_id"); err != nil {
		return nil, err
	}
	c, err := newClient(ctx, cfg, t.opts)
	if err != nil {
		return nil, err
	}

	team, channel := cfg.String("team_id"), cfg.String("channel_id")
	msgs, err := list[message](ctx, c,
		"/teams/"+url.PathEscape(team)+"/channels/"+url.PathEscape(channel)+"/messages")
	if err != nil {
		return nil, err
	}

	docs := make([]chunk.Document, 0, len(msgs))
	for _, m := range msgs {
		text := m.Body.Content
		if strings.EqualFold(m.Body.ContentType, "html") {
			text = connectors.HTMLToText(text)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, chunk.Document{
			Source: source.Teams,
			Path:   fmt.Sprintf("teams://%s/%s/%s", team, channel, m.ID),
			Title:  m.Subject,
			Text:   text,
			Metadata: map[string]string{
				"author":  m.From.User.DisplayName,
				"created": m.CreatedAt,
			},
		})
	}
	return docs, nil
}
