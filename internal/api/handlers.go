// Package api provides HTTP handlers for WhatsCommerce endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whatscommerce/whatscommerce/internal/metrics"
	"github.com/whatscommerce/whatscommerce/internal/models"
)

// webhookHandler processes inbound WhatsApp messages from Twilio. The
// signature is verified before anything is read or written; messages
// redelivered after successful processing are acknowledged without
// reprocessing, while retries of a failed attempt go through again.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	requestID := uuid.NewString()
	slog.Debug("Server.webhookHandler: processing webhook", "method", r.Method, "request_id", requestID)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method, "request_id", requestID)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse form", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form data"))
		return
	}

	if s.opts.Validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		signedURL := s.opts.PublicURL + r.URL.RequestURI()
		signature := r.Header.Get("X-Twilio-Signature")
		if !s.opts.Validator.Validate(signedURL, params, signature) {
			slog.Warn("Server.webhookHandler: signature verification failed", "request_id", requestID)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid signature"))
			return
		}
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	messageSid := r.PostFormValue("MessageSid")
	if from == "" || body == "" {
		slog.Warn("Server.webhookHandler: missing required fields", "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing From or Body"))
		return
	}

	canonicalFrom, err := s.msgService.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Server.webhookHandler: sender validation failed", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if messageSid != "" {
		fresh, err := s.store.RecordInbound(messageSid, canonicalFrom)
		if err != nil {
			slog.Error("Server.webhookHandler: dedup check failed", "error", err, "request_id", requestID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
			return
		}
		if !fresh {
			slog.Info("Server.webhookHandler: dropping redelivered message", "message_sid", messageSid, "request_id", requestID)
			metrics.RecordDuplicate()
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Duplicate acknowledged", nil))
			return
		}
	}

	reply, err := s.engine.HandleMessage(r.Context(), canonicalFrom, body, time.Now())
	if err != nil {
		slog.Error("Server.webhookHandler: engine failed", "error", err, "from", canonicalFrom, "request_id", requestID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}

	if _, err := s.msgService.SendMessage(r.Context(), canonicalFrom, reply); err != nil {
		slog.Error("Server.webhookHandler: reply send failed", "error", err, "to", canonicalFrom, "request_id", requestID)
		metrics.RecordMessageSent(false)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send reply"))
		return
	}
	metrics.RecordMessageSent(true)

	if messageSid != "" {
		if err := s.store.MarkProcessed(messageSid); err != nil {
			slog.Warn("Server.webhookHandler: failed to mark message processed", "error", err, "message_sid", messageSid)
		}
	}

	slog.Info("Server.webhookHandler: message handled", "from", canonicalFrom, "request_id", requestID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message processed", nil))
}

// templateUpdate is the PUT /templates request body.
type templateUpdate struct {
	Key      string `json:"key"`
	Template string `json:"template"`
}

// templatesHandler manages the outgoing message templates: GET lists the
// current set, PUT overrides one entry, DELETE restores the defaults.
func (s *Server) templatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.Success(s.templates.All()))
	case http.MethodPut:
		var update templateUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			slog.Warn("Server.templatesHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := s.templates.Set(update.Key, update.Template); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Info("Server.templatesHandler: template updated", "key", update.Key)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Template updated", nil))
	case http.MethodDelete:
		s.templates.RestoreDefaults()
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Templates restored to defaults", nil))
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
