package realtime

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	myMiddleware "foodline/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Handler upgrades authenticated requests into registered connections.
// Auth runs in middleware before the upgrade, so a connection that fails
// it is refused at the handshake and never touches the registry.
type Handler struct {
	registry *Registry
	router   *Router
}

func NewHandler(registry *Registry, router *Router) *Handler {
	return &Handler{registry: registry, router: router}
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	ident, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := newClient(uuid.NewString(), ident.ID, ident.Name, conn, h.registry, h.router)

	// Admission and identity-channel join are one step; the pumps only
	// start once the connection is fully registered.
	if err := h.registry.Admit(client); err != nil {
		log.Printf("admit [%s]: %v", client.ID, err)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
