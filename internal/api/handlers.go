package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/util"
)

// messagesHandler processes one inbound activity synchronously and returns
// the replies the dialog engine produced.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.bot == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Bot not configured"))
		return
	}

	var activity models.Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		slog.Warn("Server.messagesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if activity.Type == "" {
		activity.Type = models.ActivityTypeMessage
	}
	if activity.Conversation == "" {
		activity.Conversation = activity.From.ID
	}
	if err := activity.Validate(); err != nil {
		slog.Warn("Server.messagesHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	replies, err := s.bot.ProcessActivity(r.Context(), activity)
	if err != nil {
		slog.Error("Server.messagesHandler: turn failed", "error", err, "conversation", activity.Conversation)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	// Best-effort delivery over the attached channel; the replies are still
	// returned in the response body either way.
	if s.msgService != nil {
		for _, reply := range replies {
			if err := s.msgService.SendMessage(r.Context(), reply.To, reply.Text); err != nil {
				slog.Warn("Server.messagesHandler: channel delivery failed", "error", err, "to", reply.To)
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"replies": replies,
	}))
}

// profileHandler returns the stored profile for one user.
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("State manager not configured"))
		return
	}
	userID := r.PathValue("id")
	profile, err := s.state.GetUserProfile(r.Context(), userID)
	if err != nil {
		slog.Error("Server.profileHandler: load failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load profile"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

// deleteConversationHandler clears a conversation's dialog stack and state.
func (s *Server) deleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("State manager not configured"))
		return
	}
	conversationID := r.PathValue("id")
	if err := s.state.ResetConversation(r.Context(), conversationID); err != nil {
		slog.Error("Server.deleteConversationHandler: reset failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation reset", nil))
}

// receiptsHandler returns the outbound delivery audit trail.
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Store not configured"))
		return
	}
	receipts, err := s.store.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: load failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load receipts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// responsesHandler returns the inbound message audit trail.
func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Store not configured"))
		return
	}
	responses, err := s.store.GetResponses()
	if err != nil {
		slog.Error("Server.responsesHandler: load failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load responses"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(responses))
}

// scheduleHandler registers a recurring outbound message.
func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.sched == nil || s.msgService == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Scheduler not configured"))
		return
	}

	var msg models.ScheduledMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		slog.Warn("Server.scheduleHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := msg.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	canonicalTo, err := s.msgService.ValidateAndCanonicalizeRecipient(msg.To)
	if err != nil {
		slog.Warn("Server.scheduleHandler: recipient validation failed", "error", err, "to", msg.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	body := msg.Body
	if _, err := s.sched.AddJob(msg.Cron, func() {
		if err := s.msgService.SendMessage(context.Background(), canonicalTo, body); err != nil {
			slog.Error("Scheduled message delivery failed", "error", err, "to", canonicalTo)
		}
	}); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid cron expression"))
		return
	}

	scheduleID := util.GenerateScheduleID()
	slog.Info("Server.scheduleHandler: message scheduled", "schedule_id", scheduleID, "to", canonicalTo, "cron", msg.Cron)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message scheduled", map[string]string{
		"id": scheduleID,
	}))
}

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
