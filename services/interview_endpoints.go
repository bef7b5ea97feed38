package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careerloop/backend/models"
	"github.com/careerloop/backend/repository"
)

type InterviewEndpoints struct {
	repo      *repository.GORMRepository
	scheduler *Scheduler
	questions *QuestionService
}

func NewInterviewEndpoints(repo *repository.GORMRepository, scheduler *Scheduler, questions *QuestionService) *InterviewEndpoints {
	return &InterviewEndpoints{
		repo:      repo,
		scheduler: scheduler,
		questions: questions,
	}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", e.ScheduleHandler)
		r.Get("/", e.ListHandler)
		r.Get("/stats", e.StatsHandler)
		r.Get("/slots", e.SlotsHandler)
		r.Get("/{id}", e.GetHandler)
		r.Delete("/{id}", e.DeleteHandler)
		r.Post("/{id}/reschedule", e.RescheduleHandler)
		r.Post("/{id}/cancel", e.CancelHandler)
		r.Patch("/{id}/status", e.StatusHandler)
		r.Post("/{id}/questions", e.GenerateQuestionsHandler)
		r.Get("/{id}/questions", e.ListQuestionsHandler)
	})
}

// writeSchedulerError maps the scheduler's typed failures to HTTP statuses.
func writeSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInterviewNotFound):
		http.Error(w, "Interview not found", http.StatusNotFound)
	case errors.Is(err, ErrSlotConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidInterview), errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Operation failed", http.StatusInternalServerError)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

func (e *InterviewEndpoints) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	interview, err := e.scheduler.ScheduleInterview(r.Context(), user.ID, &req)
	if err != nil {
		slog.Error("Failed to schedule interview", "error", err, "user_id", user.ID)
		writeSchedulerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
		"message":   "Interview scheduled successfully",
	})
}

func (e *InterviewEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	filter := repository.InterviewFilter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		filter.Offset = offset
	}

	interviews, err := e.repo.ListInterviews(r.Context(), user.ID, filter)
	if err != nil {
		slog.Error("Failed to list interviews", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to list interviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interviews": interviews,
		"count":      len(interviews),
	})
}

func (e *InterviewEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	interview, err := e.scheduler.GetInterview(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
	})
}

func (e *InterviewEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	stats := e.scheduler.GetInterviewStats(user.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (e *InterviewEndpoints) SlotsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "Invalid or missing date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || duration <= 0 {
		http.Error(w, "Invalid or missing duration", http.StatusBadRequest)
		return
	}

	slots, err := e.scheduler.GetAvailableSlots(r.Context(), user.ID, date, duration)
	if err != nil {
		slog.Error("Failed to compute slots", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to compute slots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"duration": duration,
		"slots":    slots,
	})
}

type RescheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

func (e *InterviewEndpoints) RescheduleHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduledTime.IsZero() {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	interview, err := e.scheduler.RescheduleInterview(r.Context(), user.ID, chi.URLParam(r, "id"), req.ScheduledTime)
	if err != nil {
		slog.Error("Failed to reschedule interview", "error", err, "user_id", user.ID)
		writeSchedulerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
		"message":   "Interview rescheduled",
	})
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

func (e *InterviewEndpoints) CancelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CancelRequest
	if r.Body != nil {
		// Body is optional; a missing reason is fine.
		json.NewDecoder(r.Body).Decode(&req)
	}

	interview, err := e.scheduler.CancelInterview(r.Context(), user.ID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		slog.Error("Failed to cancel interview", "error", err, "user_id", user.ID)
		writeSchedulerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
		"message":   "Interview cancelled",
	})
}

type StatusRequest struct {
	Status string `json:"status"`
}

func (e *InterviewEndpoints) StatusHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	interview, err := e.scheduler.UpdateInterviewStatus(r.Context(), user.ID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		slog.Error("Failed to update interview status", "error", err, "user_id", user.ID)
		writeSchedulerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
		"message":   "Status updated",
	})
}

func (e *InterviewEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := e.scheduler.DeleteInterview(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		slog.Error("Failed to delete interview", "error", err, "user_id", user.ID)
		writeSchedulerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type GenerateQuestionsRequest struct {
	Count int `json:"count"`
}

func (e *InterviewEndpoints) GenerateQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if e.questions == nil {
		http.Error(w, "Question generation is not configured", http.StatusServiceUnavailable)
		return
	}

	interview, err := e.scheduler.GetInterview(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	var req GenerateQuestionsRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	generated, err := e.questions.GenerateQuestions(r.Context(), interview, req.Count)
	if err != nil {
		slog.Error("Failed to generate questions", "error", err, "interview_id", interview.ID)
		http.Error(w, "Failed to generate questions", http.StatusInternalServerError)
		return
	}

	saved := make([]models.InterviewQuestion, 0, len(generated))
	for _, question := range generated {
		record := models.InterviewQuestion{
			InterviewID: interview.ID,
			Question:    question.Question,
			Category:    question.Category,
		}
		if err := e.repo.CreateInterviewQuestion(r.Context(), &record); err != nil {
			slog.Error("Failed to save generated question", "error", err, "interview_id", interview.ID)
			continue
		}
		saved = append(saved, record)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"questions": saved,
		"count":     len(saved),
	})
}

func (e *InterviewEndpoints) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	interview, err := e.scheduler.GetInterview(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	questions, err := e.repo.GetInterviewQuestions(r.Context(), interview.ID)
	if err != nil {
		http.Error(w, "Failed to get questions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"questions": questions,
		"count":     len(questions),
	})
}
