package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"classboard/internal/auth"
	"classboard/internal/liveclass"
	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// Registry is the slice of the connection registry the API needs for the
// health endpoint.
type Registry interface {
	Stats() map[string]int
}

// DoubtSolver answers student questions. The real solver is an external AI
// collaborator; the default implementation is a placeholder.
type DoubtSolver interface {
	Ask(ctx context.Context, question string) (string, error)
}

// PlaceholderSolver returns a canned answer until the AI bridge is wired to
// a real model.
type PlaceholderSolver struct{}

func (PlaceholderSolver) Ask(ctx context.Context, question string) (string, error) {
	return "The doubt-solving assistant is warming up. Please ask your teacher for now.", nil
}

// Request bodies are validated declaratively; the validator instance is
// shared across handlers.
var validate = validator.New()

// Server is the HTTP surface: JSON handling and status mapping only, no
// business logic.
type Server struct {
	liveClass *liveclass.Manager
	store     interfaces.Store
	registry  Registry
	tokens    *auth.TokenIssuer
	solver    DoubtSolver
	router    *http.ServeMux
}

// NewServer wires the REST routes. A nil solver falls back to the
// placeholder.
func NewServer(liveClass *liveclass.Manager, store interfaces.Store, registry Registry, tokens *auth.TokenIssuer, solver DoubtSolver) *Server {
	if solver == nil {
		solver = PlaceholderSolver{}
	}

	s := &Server{
		liveClass: liveClass,
		store:     store,
		registry:  registry,
		tokens:    tokens,
		solver:    solver,
		router:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	routes := map[string]http.HandlerFunc{
		"/api/live-class":         s.handleLiveClass,
		"/api/login":              s.handleLogin,
		"/api/users":              s.handleUsers,
		"/api/students":           s.handleStudents,
		"/api/students/":          s.handleStudentByID,
		"/api/banners":            s.handleBanners,
		"/api/banners/":           s.handleBannerByID,
		"/api/announcements":      s.handleAnnouncements,
		"/api/announcements/":     s.handleAnnouncementByID,
		"/api/payments":           s.handlePayments,
		"/api/payments/":          s.handlePaymentByID,
		"/api/admin/all-payments": s.handleAllPayments,
		"/api/materials":          s.handleMaterials,
		"/api/materials/":         s.handleMaterialByID,
		"/api/ask":                s.handleAsk,
		"/health":                 s.healthCheck,
	}

	for path, handler := range routes {
		s.router.Handle(path, s.corsMiddleware(s.jsonMiddleware(handler)))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/response types.

type LiveClassRequest struct {
	MeetingID       string   `json:"meeting_id"`
	IsActive        int      `json:"is_active" validate:"oneof=0 1"`
	InvitedStudents []string `json:"invited_students"`
}

type SuccessResponse struct {
	Success   bool   `json:"success"`
	MeetingID string `json:"meeting_id,omitempty"`
	ID        string `json:"id,omitempty"`
}

type LoginRequest struct {
	Phone    string `json:"phone" validate:"required,min=4,max=20"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User  *types.User `json:"user"`
	Token string      `json:"token"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Phone    string `json:"phone" validate:"required,min=4,max=20"`
	Password string `json:"password" validate:"required,min=4"`
	Role     string `json:"role"`
}

type CreateBannerRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	ImageURL string `json:"image_url" validate:"required,url"`
}

type CreateAnnouncementRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type CreatePaymentRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	ScreenshotURL string  `json:"screenshot_url" validate:"required,url"`
}

type CreateMaterialRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Type      string `json:"type" validate:"required,oneof=note practice_sheet"`
	FileURL   string `json:"file_url" validate:"required,url"`
	StudentID string `json:"student_id"`
}

type AskRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleLiveClass serves the live-class singleton.
//
// GET returns the current record, defaulting to {is_active:false}. POST with
// is_active:1 starts a class, or replaces the invitee set when the meeting
// ID matches the one already live; POST with is_active:0 ends the class
// (idempotent).
func (s *Server) handleLiveClass(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getLiveClass(w, r)
	case http.MethodPost:
		s.postLiveClass(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getLiveClass(w http.ResponseWriter, r *http.Request) {
	session, err := s.liveClass.Current(r.Context())
	if err != nil {
		s.sendStateError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(session)
}

func (s *Server) postLiveClass(w http.ResponseWriter, r *http.Request) {
	var req LiveClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.IsActive == 0 {
		if err := s.liveClass.End(r.Context(), req.MeetingID); err != nil {
			s.sendStateError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})
		return
	}

	meetingID := req.MeetingID
	if meetingID == "" {
		meetingID = liveclass.NewMeetingID()
	}

	current, err := s.liveClass.Current(r.Context())
	if err != nil {
		s.sendStateError(w, err)
		return
	}

	if current.IsActive && current.MeetingID == meetingID {
		if _, err := s.liveClass.UpdateInvitees(r.Context(), meetingID, req.InvitedStudents); err != nil {
			s.sendStateError(w, err)
			return
		}
	} else {
		if _, err := s.liveClass.Start(r.Context(), meetingID, req.InvitedStudents); err != nil {
			s.sendStateError(w, err)
			return
		}
	}

	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, MeetingID: meetingID})
}

// handleLogin checks phone + password and returns the account with a signed
// token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByPhone(r.Context(), req.Phone)
	if err != nil || user.Password != req.Password {
		s.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		s.sendError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(LoginResponse{User: user, Token: token})
}

// handleUsers creates accounts (role defaults to student).
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	role := req.Role
	if role == "" {
		role = types.RoleStudent
	}
	if !types.IsValidRole(role) {
		s.sendError(w, types.ErrInvalidRole.Error(), http.StatusBadRequest)
		return
	}

	user := &types.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Password:  req.Password,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.sendError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, ID: user.ID})
}

// handleStudents lists student accounts.
func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	students, err := s.store.ListStudents(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list students", http.StatusInternalServerError)
		return
	}
	if students == nil {
		students = []*types.User{}
	}
	_ = json.NewEncoder(w).Encode(students)
}

func (s *Server) handleStudentByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "/api/students/")
	if !ok {
		return
	}
	if !s.requireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.sendError(w, "Failed to delete student", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})
}

func (s *Server) handleBanners(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		banners, err := s.store.ListBanners(r.Context())
		if err != nil {
			s.sendError(w, "Failed to list banners", http.StatusInternalServerError)
			return
		}
		if banners == nil {
			banners = []*types.Banner{}
		}
		_ = json.NewEncoder(w).Encode(banners)

	case http.MethodPost:
		var req CreateBannerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}

		banner := &types.Banner{
			ID:        uuid.New().String(),
			Title:     req.Title,
			ImageURL:  req.ImageURL,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateBanner(r.Context(), banner); err != nil {
			s.sendError(w, "Failed to create banner", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, ID: banner.ID})

	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBannerByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "/api/banners/")
	if !ok {
		return
	}
	if !s.requireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := s.store.DeleteBanner(r.Context(), id); err != nil {
		s.sendError(w, "Failed to delete banner", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})
}

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		announcements, err := s.store.ListAnnouncements(r.Context())
		if err != nil {
			s.sendError(w, "Failed to list announcements", http.StatusInternalServerError)
			return
		}
		if announcements == nil {
			announcements = []*types.Announcement{}
		}
		_ = json.NewEncoder(w).Encode(announcements)

	case http.MethodPost:
		var req CreateAnnouncementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}

		announcement := &types.Announcement{
			ID:        uuid.New().String(),
			Content:   req.Content,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateAnnouncement(r.Context(), announcement); err != nil {
			s.sendError(w, "Failed to create announcement", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, ID: announcement.ID})

	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAnnouncementByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "/api/announcements/")
	if !ok {
		return
	}
	if !s.requireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := s.store.DeleteAnnouncement(r.Context(), id); err != nil {
		s.sendError(w, "Failed to delete announcement", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})
}

// handlePayments accepts fee-screenshot submissions. The screenshot itself
// goes to the external file host; only the returned URL lands here.
func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !types.IsValidUserID(req.StudentID) {
		s.sendError(w, types.ErrInvalidUserID.Error(), http.StatusBadRequest)
		return
	}

	payment := &types.Payment{
		ID:            uuid.New().String(),
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		ScreenshotURL: req.ScreenshotURL,
		Status:        types.PaymentPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreatePayment(r.Context(), payment); err != nil {
		s.sendError(w, "Failed to create payment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, ID: payment.ID})
}

// handlePaymentByID serves GET (a student's payments) and DELETE (remove a
// record). The path segment is a student ID for GET and a payment ID for
// DELETE, matching the original API shape.
func (s *Server) handlePaymentByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "/api/payments/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		payments, err := s.store.ListPaymentsByStudent(r.Context(), id)
		if err != nil {
			s.sendError(w, "Failed to list payments", http.StatusInternalServerError)
			return
		}
		if payments == nil {
			payments = []*types.Payment{}
		}
		_ = json.NewEncoder(w).Encode(payments)

	case http.MethodDelete:
		if err := s.store.DeletePayment(r.Context(), id); err != nil {
			s.sendError(w, "Failed to delete payment", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})

	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAllPayments(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	payments, err := s.store.ListPayments(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list payments", http.StatusInternalServerError)
		return
	}
	if payments == nil {
		payments = []*types.Payment{}
	}
	_ = json.NewEncoder(w).Encode(payments)
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var materials []*types.Material
		var err error
		if studentID := r.URL.Query().Get("student_id"); studentID != "" {
			materials, err = s.store.ListMaterialsForStudent(r.Context(), studentID)
		} else {
			materials, err = s.store.ListMaterials(r.Context())
		}
		if err != nil {
			s.sendError(w, "Failed to list materials", http.StatusInternalServerError)
			return
		}
		if materials == nil {
			materials = []*types.Material{}
		}
		_ = json.NewEncoder(w).Encode(materials)

	case http.MethodPost:
		var req CreateMaterialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.StudentID != "" && !types.IsValidUserID(req.StudentID) {
			s.sendError(w, types.ErrInvalidUserID.Error(), http.StatusBadRequest)
			return
		}

		material := &types.Material{
			ID:        uuid.New().String(),
			Title:     req.Title,
			Type:      req.Type,
			FileURL:   req.FileURL,
			StudentID: req.StudentID,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateMaterial(r.Context(), material); err != nil {
			s.sendError(w, "Failed to create material", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, ID: material.ID})

	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMaterialByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "/api/materials/")
	if !ok {
		return
	}
	if !s.requireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := s.store.DeleteMaterial(r.Context(), id); err != nil {
		s.sendError(w, "Failed to delete material", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})
}

// handleAsk bridges to the doubt-solving collaborator.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	answer, err := s.solver.Ask(r.Context(), req.Question)
	if err != nil {
		s.sendError(w, "Doubt solver unavailable", http.StatusServiceUnavailable)
		return
	}

	_ = json.NewEncoder(w).Encode(AskResponse{Answer: answer})
}

// healthCheck validates storage connectivity and reports connection stats.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = "error: " + err.Error()
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.registry.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

// sendStateError maps state-machine and storage failures to HTTP statuses.
// A write that fails to persist leaves the previous session state untouched,
// so the caller can simply retry or rely on the next poll.
func (s *Server) sendStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, liveclass.ErrInvalidTransition):
		s.sendError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, liveclass.ErrInvalidMeetingID),
		errors.Is(err, liveclass.ErrInvalidStudentID):
		s.sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, interfaces.ErrStorageUnavailable):
		s.sendError(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		s.sendError(w, "Internal error", http.StatusInternalServerError)
	}
}

// pathID extracts the trailing identifier from a sub-resource path.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	id := strings.Split(path, "/")[0]
	if id == "" {
		s.sendError(w, "Identifier required", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// requireMethod handles OPTIONS and rejects everything but the given method.
func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != method {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// sendError writes a consistent error response.
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// corsMiddleware enables web client access. All origins are allowed; the
// deployment serves the client same-origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jsonMiddleware sets the JSON content type on all API responses.
func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
