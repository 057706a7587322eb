package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/login/preference", apiHandler.GetLoginPreferenceHandler)
		r.Put("/login/preference", apiHandler.SetLoginPreferenceHandler)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AuthMiddleware)

			r.Post("/logout", apiHandler.LogoutHandler)

			// Chat
			r.Get("/chat/messages", apiHandler.GetMessagesHandler)
			r.Post("/chat/messages", apiHandler.SendMessageHandler)

			// Settings dialog (any signed-in user)
			r.Get("/settings/style", apiHandler.GetStyleHandler)
			r.Put("/settings/style", apiHandler.SetStyleHandler)
			r.Get("/settings/advanced", apiHandler.GetSettingsHandler)
			r.Put("/settings/advanced", apiHandler.SetSettingsHandler)

			// Shared-document import (takes precedence over the persisted one)
			r.Post("/document/share", apiHandler.ApplyShareHandler)

			// Admin dashboard
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.AdminOnlyMiddleware)

				r.Get("/admin/document", apiHandler.GetDocumentHandler)
				r.Put("/admin/document", apiHandler.UpdateDocumentHandler)
				r.Get("/admin/document/history", apiHandler.GetHistoryHandler)
				r.Post("/admin/document/history/{snapshotID}/restore", apiHandler.RestoreHistoryHandler)
				r.Get("/admin/document/export", apiHandler.ExportDocumentHandler)
				r.Post("/admin/document/import", apiHandler.ImportDocumentHandler)
				r.Get("/admin/document/share-link", apiHandler.GetShareLinkHandler)

				r.Get("/admin/faqs", apiHandler.ListFAQsHandler)
				r.Post("/admin/faqs", apiHandler.CreateFAQHandler)
				r.Put("/admin/faqs/{faqID}", apiHandler.UpdateFAQHandler)
				r.Delete("/admin/faqs/{faqID}", apiHandler.DeleteFAQHandler)

				r.Get("/admin/users", apiHandler.ListUsersHandler)
			})
		})
	})

	return r
}
