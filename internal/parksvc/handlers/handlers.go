package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/coordinator"
	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/service"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	registry  *coordinator.Registry
	cards     *service.CardService
	reports   *service.ReportService
}

func NewHandler(registry *coordinator.Registry, cards *service.CardService, reports *service.ReportService) *Handler {
	return &Handler{
		registry: registry,
		cards:    cards,
		reports:  reports,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "parking service is running at port " + os.Getenv("PARK_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}

func laneParam(r *http.Request) (models.LaneRole, bool) {
	role := models.LaneRole(strings.ToUpper(chi.URLParam(r, "lane")))
	return role, role.Valid()
}

// TriggerHandler runs a manual capture and transaction for a lane, the
// operator supplying the card code by hand.
func (h *Handler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	lane, ok := laneParam(r)
	if !ok {
		h.CreateResponse(w, Response{Code: 400, Error: "lane must be ENTRY or EXIT"})
		return
	}

	var req comm.TriggerCommand
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid trigger payload"})
		return
	}

	if err := h.registry.Trigger(lane, strings.TrimSpace(req.CardID)); err != nil {
		h.CreateResponse(w, Response{Code: 409, Error: err.Error()})
		return
	}

	h.CreateResponse(w, Response{Code: 202, Message: "transaction queued"})
}

func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	lane, ok := laneParam(r)
	if !ok {
		h.CreateResponse(w, Response{Code: 400, Error: "lane must be ENTRY or EXIT"})
		return
	}

	status, err := h.registry.Status(lane)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: status})
}

func (h *Handler) PaymentAckHandler(w http.ResponseWriter, r *http.Request) {
	lane, ok := laneParam(r)
	if !ok {
		h.CreateResponse(w, Response{Code: 400, Error: "lane must be ENTRY or EXIT"})
		return
	}

	var req comm.PaymentAck
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxID == "" {
		h.CreateResponse(w, Response{Code: 400, Error: "payment ack requires tx_id"})
		return
	}

	if err := h.registry.AckPayment(lane, req.TxID); err != nil {
		h.CreateResponse(w, Response{Code: 409, Error: err.Error()})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Message: "payment recorded"})
}

// ImportCardsHandler bulk creates or reactivates month-pass cards. The
// operator console parses whatever file the customer list arrives in
// and posts plain ids.
func (h *Handler) ImportCardsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardIDs []string `json:"card_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid import payload"})
		return
	}

	count, err := h.cards.ImportCards(r.Context(), req.CardIDs)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: err.Error()})
		return
	}

	log.Infof("imported %d month-pass cards", count)
	h.CreateResponse(w, Response{Code: 200, Data: comm.ImportResult{Imported: count}})
}

func (h *Handler) DailyReportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.DailyReport(r.Context())
	if err != nil {
		log.Errorf("daily report failed: %v", err)
		h.CreateResponse(w, Response{Code: 500, Error: "report query failed"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: report})
}
