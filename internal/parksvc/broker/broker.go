package broker

import (
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/coordinator"
	"github.com/hoangtv/parking-services/internal/parking/models"
)

// Topics shared with the display service.
const (
	TopicLaneEvents = "park.service"
	TopicOperator   = "display.service"
)

type Broker struct {
	Conn     *nats.Conn
	Registry *coordinator.Registry
}

func NewBroker(nc *nats.Conn, registry *coordinator.Registry) *Broker {
	return &Broker{
		Conn:     nc,
		Registry: registry,
	}
}

// handleMessage dispatches operator actions relayed by the display service.
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case "trigger":
		cmd := comm.TriggerCommand{}
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			log.Errorf("Error decoding trigger command: %s", err)
			return
		}

		lane := models.LaneRole(strings.ToUpper(cmd.Lane))
		if err := b.Registry.Trigger(lane, strings.TrimSpace(cmd.CardID)); err != nil {
			log.Errorf("Error [Registry.Trigger] lane %s: %s", lane, err)
			b.PublishLaneEvent(comm.LaneEvent{
				Lane:    string(lane),
				Ok:      false,
				Message: err.Error(),
			})
		}
	case "payment-ack":
		ack := comm.PaymentAck{}
		if err := json.Unmarshal(msg.Data, &ack); err != nil {
			log.Errorf("Error decoding payment ack: %s", err)
			return
		}

		lane := models.LaneRole(strings.ToUpper(ack.Lane))
		if err := b.Registry.AckPayment(lane, ack.TxID); err != nil {
			log.Errorf("Error [Registry.AckPayment] lane %s tx %s: %s", lane, ack.TxID, err)
		}
	case "get-status":
		b.publishStatuses(msg.SocketId)
	default:
		log.Error("Unknown message")
		return
	}
}

func (b *Broker) publishStatuses(socketId string) {
	for _, lane := range []models.LaneRole{models.LaneEntry, models.LaneExit} {
		status, err := b.Registry.Status(lane)
		if err != nil {
			continue
		}
		b.PublishLaneStatus(status, socketId)
	}
}

// PublishLaneEvent pushes a completed or failed lane transaction to the
// display service. SocketId stays empty, every operator console shows
// both lanes.
func (b *Broker) PublishLaneEvent(ev comm.LaneEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("[PublishLaneEvent] unable to marshal lane event")
		return
	}

	msg := &comm.WSMessage{
		Type: "lane-event",
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(TopicLaneEvents, payload)
}

func (b *Broker) PublishLaneStatus(status comm.LaneStatus, socketId string) {
	data, err := json.Marshal(status)
	if err != nil {
		log.Errorf("[PublishLaneStatus] unable to marshal lane status")
		return
	}

	msg := &comm.WSMessage{
		Type:     "lane-status",
		Data:     data,
		SocketId: socketId,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(TopicLaneEvents, payload)
}

// SubscribeOperator consumes messages relayed from the display service.
func (b *Broker) SubscribeOperator(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
