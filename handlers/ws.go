// handlers/ws.go - Live team timeline feed
package handlers

import (
	"log"
	"sync"

	"habitto/middleware"
	"habitto/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// One client set per team; completions broadcast to teammates as they
// happen so the feed updates without polling.
var (
	feedClients = make(map[uint]map[*feedClient]bool)
	feedMu      sync.RWMutex
)

type feedWriter interface {
	WriteJSON(v interface{}) error
}

// feedClient wraps a connection with a write mutex. The websocket library
// allows only one concurrent writer per connection, and broadcasts can
// race each other when teammates complete reservations at the same time.
type feedClient struct {
	mu sync.Mutex
	w  feedWriter
}

func (c *feedClient) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteJSON(v)
}

type feedEvent struct {
	Type string               `json:"type"`
	Post *models.TimelinePost `json:"post"`
}

// UpgradeTimelineFeed gates the websocket route. The browser websocket API
// cannot set headers, so the token rides in as a query parameter.
func UpgradeTimelineFeed(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	claims, err := middleware.ParseToken(c.Query("token"))
	if err != nil {
		return fiber.ErrUnauthorized
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return fiber.ErrUnauthorized
	}

	user, err := teamService.GetUser(uint(userID))
	if err != nil || user.TeamID == nil {
		return fiber.ErrForbidden
	}

	c.Locals("teamId", *user.TeamID)
	return c.Next()
}

// TimelineFeed holds the connection open and pushes new posts for the
// caller's team. Incoming frames are drained and ignored.
func TimelineFeed(conn *websocket.Conn) {
	teamID, ok := conn.Locals("teamId").(uint)
	if !ok {
		conn.Close()
		return
	}

	client := &feedClient{w: conn}
	registerFeedClient(teamID, client)

	defer func() {
		unregisterFeedClient(teamID, client)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func registerFeedClient(teamID uint, client *feedClient) {
	feedMu.Lock()
	defer feedMu.Unlock()
	if feedClients[teamID] == nil {
		feedClients[teamID] = make(map[*feedClient]bool)
	}
	feedClients[teamID][client] = true
}

func unregisterFeedClient(teamID uint, client *feedClient) {
	feedMu.Lock()
	defer feedMu.Unlock()
	delete(feedClients[teamID], client)
	if len(feedClients[teamID]) == 0 {
		delete(feedClients, teamID)
	}
}

// BroadcastPost pushes a freshly created timeline post to every teammate
// currently connected. Best-effort: a dead connection just gets dropped on
// its next read.
func BroadcastPost(post *models.TimelinePost) {
	if post == nil {
		return
	}

	feedMu.RLock()
	clients := make([]*feedClient, 0, len(feedClients[post.TeamID]))
	for client := range feedClients[post.TeamID] {
		clients = append(clients, client)
	}
	feedMu.RUnlock()

	event := feedEvent{Type: "timeline_post", Post: post}
	for _, client := range clients {
		if err := client.send(event); err != nil {
			log.Printf("timeline feed write failed: %v", err)
		}
	}
}
