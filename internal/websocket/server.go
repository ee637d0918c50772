package websocket

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rehome-app/rehome-api/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewServer builds the standalone websocket listener. The endpoint lives on
// its own port because the REST API runs on fasthttp while the upgrade
// handshake needs net/http.
func NewServer(addr string, manager *Manager, jwtService *utils.JWTService) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := jwtService.ExtractUserID(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket: upgrade failed: %v", err)
			return
		}

		client := NewClient(userID, conn, manager)
		client.Start()
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
