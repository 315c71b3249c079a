package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const ownershipLookupTimeout = 5 * time.Second

type WebSocketHandler struct {
	Hub            *socket.Hub
	Tokens         *auth.TokenManager
	Store          *repository.Store
	AllowedOrigins []string
	Logger         *zap.Logger
}

func (h *WebSocketHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range h.AllowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ServeWs upgrades an authenticated connection. The token comes from the
// query string because browsers cannot set headers on websocket requests.
// An optional ?channel= subscribes immediately.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	claims, err := h.Tokens.Parse(tokenString, auth.TokenTypeAccess)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	allow := h.channelGuard(claims.UserID(), claims.Role == models.RoleAdmin)
	client := socket.NewClient(h.Hub, conn, claims.UserID(), allow)
	h.Hub.Register(client)
	if ch := c.Query("channel"); ch != "" && allow(ch) {
		h.Hub.Subscribe(client, ch)
	}

	go client.WritePump()
	go client.ReadPump()
}

// channelGuard allows route and weather channels for routes the user owns and
// vehicle channels for their vehicles. Admins may listen anywhere.
func (h *WebSocketHandler) channelGuard(userID string, admin bool) func(string) bool {
	return func(channel string) bool {
		if admin {
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), ownershipLookupTimeout)
		defer cancel()

		switch {
		case strings.HasPrefix(channel, socket.RouteUpdatePrefix):
			return h.ownsRoute(ctx, strings.TrimPrefix(channel, socket.RouteUpdatePrefix), userID)
		case strings.HasPrefix(channel, socket.WeatherUpdatePrefix):
			return h.ownsRoute(ctx, strings.TrimPrefix(channel, socket.WeatherUpdatePrefix), userID)
		case strings.HasPrefix(channel, socket.VehicleUpdatePrefix):
			v, err := h.Store.Vehicles.Get(ctx, strings.TrimPrefix(channel, socket.VehicleUpdatePrefix))
			return err == nil && v.UserID == userID
		}
		return false
	}
}

func (h *WebSocketHandler) ownsRoute(ctx context.Context, routeID, userID string) bool {
	r, err := h.Store.Routes.Get(ctx, routeID)
	return err == nil && r.UserID == userID
}
