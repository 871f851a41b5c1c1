package api

import (
	"net/http"

	"github.com/chatly-hq/chatly/internal/gateway"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers bundles everything the HTTP surface exposes.
type Handlers struct {
	Channels *ChannelHandler
	Messages *MessageHandler
	Polls    *PollHandler
	Push     *PushHandler
	Bots     *BotHandler
	Gateway  *gateway.Gateway
}

// NewRouter mounts the REST routes and the websocket endpoint. Every route
// runs behind the identity middleware; authentication itself happens at the
// front proxy.
func NewRouter(h Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-User-Admin"},
			AllowCredentials: true,
		}))
	}
	r.Use(gateway.Identity)

	r.Get("/ws", h.Gateway.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/channels", func(r chi.Router) {
			r.Post("/", h.Channels.Create)
			r.Get("/", h.Channels.List)
			r.Get("/unread", h.Channels.UnreadOverview)

			r.Route("/{channelID}", func(r chi.Router) {
				r.Get("/", h.Channels.Get)
				r.Post("/archive", h.Channels.Archive)
				r.Get("/unread", h.Channels.UnreadCount)
				r.Post("/visit", h.Channels.TrackVisit)
				r.Put("/notifications", h.Channels.SetNotificationPreference)

				r.Get("/members", h.Channels.ListMembers)
				r.Post("/members", h.Channels.AddMember)
				r.Delete("/members/{userID}", h.Channels.RemoveMember)

				r.Post("/messages", h.Messages.Send)
				r.Get("/messages", h.Messages.Timeline)
				r.Get("/files", h.Messages.RecentFiles)
			})
		})

		r.Post("/dm", h.Channels.CreateDM)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/saved", h.Messages.ListSaved)

			r.Route("/{messageID}", func(r chi.Router) {
				r.Get("/", h.Messages.Get)
				r.Patch("/", h.Messages.Edit)
				r.Delete("/", h.Messages.Delete)
				r.Post("/file", h.Messages.AttachFile)
				r.Post("/save", h.Messages.ToggleSave)
				r.Post("/reactions", h.Messages.ToggleReaction)
			})
		})

		r.Route("/polls", func(r chi.Router) {
			r.Post("/", h.Polls.Create)
			r.Route("/{pollID}", func(r chi.Router) {
				r.Get("/", h.Polls.Get)
				r.Post("/vote", h.Polls.Vote)
				r.Delete("/vote", h.Polls.RetractVote)
				r.Post("/close", h.Polls.Close)
			})
		})

		r.Route("/push", func(r chi.Router) {
			r.Post("/subscriptions", h.Push.Subscribe)
			r.Delete("/subscriptions", h.Push.Unsubscribe)
		})

		r.Route("/bots", func(r chi.Router) {
			r.Post("/", h.Bots.Create)
			r.Route("/{botID}", func(r chi.Router) {
				r.Get("/", h.Bots.Get)
				r.Post("/channels/{channelID}", h.Bots.AddToChannel)
				r.Delete("/channels/{channelID}", h.Bots.RemoveFromChannel)
				r.Post("/messages", h.Bots.SendMessage)
				r.Get("/messages/last", h.Bots.LastMessage)
				r.Get("/channels/{channelID}/messages", h.Bots.PreviousMessages)
			})
		})
	})

	return r
}
