package router

import (
	"net/http"

	"sharedpad/config"
	handler "sharedpad/internal/document"
	"sharedpad/internal/document/service"
	"sharedpad/middleware"
	"sharedpad/socket"
	"sharedpad/web"
)

func Setup(svc *service.DocumentService, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	docHandler := handler.NewDocumentHandler(svc, cfg)

	mux.HandleFunc("GET /{$}", web.IndexHandler)
	mux.HandleFunc("GET /content", docHandler.GetContent)
	mux.HandleFunc("POST /content", docHandler.SaveContent)
	mux.HandleFunc("GET /content/events", docHandler.StreamUpdates)
	mux.HandleFunc("GET /healthz", docHandler.Status)

	// WebSocket
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(svc, cfg.HeartbeatInterval, w, r)
	})

	return middleware.LoggingMiddleware(middleware.CORSMiddleware(cfg.AllowedOrigin)(mux))
}
