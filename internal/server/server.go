package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/unimarket/backend/internal/auth"
	"github.com/unimarket/backend/internal/handler"
	appmw "github.com/unimarket/backend/internal/middleware"
	"github.com/unimarket/backend/internal/repository"
	"github.com/unimarket/backend/internal/service"
	"github.com/unimarket/backend/internal/ws"
	"gorm.io/gorm"
)

type Server struct {
	e           *echo.Echo
	chatRepo    repository.ChatRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
}

func New(db *gorm.DB, verifier auth.TokenVerifier, allowedOrigins []string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true, nil
				}
			}
			return false, nil
		},
	}))

	chatRepo := repository.NewChatRepository(db)
	productRepo := repository.NewProductRepository(db)
	userRepo := repository.NewUserRepository(db)

	hub := ws.NewHub()
	chatSvc := service.NewChatService(chatRepo, productRepo, userRepo, hub)
	chatHandler := handler.NewChatHandler(chatSvc)
	userHandler := handler.NewUserHandler(userRepo)
	gateway := ws.NewGateway(hub, chatSvc, verifier, allowedOrigins)

	authMw := appmw.NewAuthMiddleware(verifier)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})

	// Token is carried in the handshake query, verified by the gateway.
	e.GET("/ws", gateway.ServeWS)

	api := e.Group("/api")
	api.GET("/conversations", chatHandler.List, authMw.RequireAuth)
	api.GET("/conversations/product/:productId", chatHandler.ResolveByProduct, authMw.RequireAuth)
	api.GET("/conversations/:id", chatHandler.Get, authMw.RequireAuth)
	api.GET("/conversations/:id/messages", chatHandler.ListMessages, authMw.RequireAuth)
	api.POST("/conversations/:id/messages", chatHandler.SendMessage, authMw.RequireAuth)
	api.POST("/conversations/:id/read", chatHandler.MarkRead, authMw.RequireAuth)
	api.PUT("/me/profile", userHandler.UpsertProfile, authMw.RequireAuth)
	api.GET("/users/:uid/public", userHandler.GetPublic)

	return &Server{e: e, chatRepo: chatRepo, productRepo: productRepo, userRepo: userRepo}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// SetDB injects the database once it is available. The HTTP server comes up
// first so health checks pass while the connection is still being dialed.
func (s *Server) SetDB(db *gorm.DB) {
	s.chatRepo.SetDB(db)
	s.productRepo.SetDB(db)
	s.userRepo.SetDB(db)
}
