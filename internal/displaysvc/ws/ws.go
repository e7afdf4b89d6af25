package ws

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/displaysvc/broker"
)

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles operator actions from the console and relays
// them to the lane controller.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "trigger":
		s.handleTrigger(socketId, message)
	case "payment-ack":
		s.handlePaymentAck(socketId, message)
	case "get-status":
		s.relay(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleTrigger(socketId string, msg *comm.WSMessage) {
	var payload comm.TriggerCommand
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: malformed trigger payload %s", err)
		return
	}

	if strings.TrimSpace(payload.Lane) == "" {
		log.Error("Invalid trigger payload: missing lane")
		return
	}

	s.relay(socketId, msg)
}

func (s *Ws) handlePaymentAck(socketId string, msg *comm.WSMessage) {
	var payload comm.PaymentAck
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: malformed payment ack payload %s", err)
		return
	}

	if payload.TxID == "" {
		log.Error("Invalid payment ack payload: missing tx_id")
		return
	}

	s.relay(socketId, msg)
}

// relay forwards an operator message to the lane controller over NATS.
func (s *Ws) relay(socketId string, msg *comm.WSMessage) {
	msg.SocketId = socketId

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	topic := "display.service"
	if err := s.Broker.Publish(topic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", topic, err)
		return
	}

	log.Debugf("Published %s message from socket %s to topic %s", msg.Type, socketId, topic)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// EachConnection visits every live console connection.
func (s *Ws) EachConnection(fn func(socketId string, conn *websocket.Conn) bool) {
	s.connMap.Range(func(key, value interface{}) bool {
		return fn(key.(string), value.(*websocket.Conn))
	})
}
