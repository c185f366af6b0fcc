package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to every subscriber of a wallet after a committed
// balance mutation.
type BalanceUpdate struct {
	WalletID  string `json:"wallet_id"`
	Available string `json:"available_balance"`
	Reserved  string `json:"reserved_balance"`
	Currency  string `json:"currency"`
	Version   int64  `json:"version"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(walletID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[walletID] == nil {
		h.clients[walletID] = make(map[*Client]struct{})
	}
	h.clients[walletID][client] = struct{}{}
}

func (h *Hub) Unregister(walletID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[walletID] == nil {
		return
	}
	delete(h.clients[walletID], client)
	if len(h.clients[walletID]) == 0 {
		delete(h.clients, walletID)
	}
}

func (h *Hub) BroadcastBalance(walletID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[walletID] {
		// slow subscribers miss updates rather than stall the writer
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) Subscribers(walletID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[walletID])
}
