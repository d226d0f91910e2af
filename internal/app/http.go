package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fabula/api/internal/auth"
	"fabula/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.SignUp(r.Context(), body.Email, body.Password, body.Name)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        session.UserID,
			"userName":      session.UserName,
			"email":         session.Email,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	parts = parts[1:]

	switch parts[0] {
	case "projects":
		s.routeProjects(w, r, session, parts[1:])
	case "acts":
		s.routeActs(w, r, session, parts[1:])
	case "sequences":
		s.routeSequences(w, r, session, parts[1:])
	case "scenes":
		s.routeScenes(w, r, session, parts[1:])
	case "shots":
		s.routeShots(w, r, session, parts[1:])
	case "characters":
		s.routeCharacters(w, r, session, parts[1:])
	case "arcs":
		s.routeArcs(w, r, session, parts[1:])
	case "beats":
		s.routeBeats(w, r, session, parts[1:])
	case "facts":
		s.routeFacts(w, r, session, parts[1:])
	case "relationships":
		s.routeRelationships(w, r, session, parts[1:])
	case "locations":
		s.routeLocations(w, r, session, parts[1:])
	case "rules":
		s.routeRules(w, r, session, parts[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeProjects(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		items, err := s.service.ListProjects(r.Context(), session)
		s.respond(w, map[string]any{"projects": items}, err, http.StatusOK)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateProject(r.Context(), session, body.Name, body.Description)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 1 && r.Method == http.MethodGet:
		payload, err := s.service.GetProject(r.Context(), session, parts[0])
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateProject(r.Context(), session, parts[0], body.Name, body.Description)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteProject(r.Context(), session, parts[0]))

	case len(parts) == 2 && parts[1] == "members" && r.Method == http.MethodPost:
		var body struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AddMember(r.Context(), session, parts[0], body.Email, body.Role)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 3 && parts[1] == "members" && r.Method == http.MethodPut:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateMemberRole(r.Context(), session, parts[0], parts[2], body.Role)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 3 && parts[1] == "members" && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.RemoveMember(r.Context(), session, parts[0], parts[2]))

	case len(parts) == 2 && parts[1] == "acts" && r.Method == http.MethodGet:
		items, err := s.service.ListActs(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"acts": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "acts" && r.Method == http.MethodPost:
		var body struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
			Index   int    `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateAct(r.Context(), session, parts[0], body.Title, body.Summary, body.Index)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 3 && parts[1] == "acts" && parts[2] == "reorder" && r.Method == http.MethodPut:
		var body struct {
			OrderedIDs []string `json:"orderedIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		items, err := s.service.ReorderActs(r.Context(), session, parts[0], body.OrderedIDs)
		s.respond(w, map[string]any{"acts": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "characters" && r.Method == http.MethodGet:
		items, err := s.service.ListCharacters(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"characters": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "characters" && r.Method == http.MethodPost:
		var body struct {
			Name     string `json:"name"`
			Bio      string `json:"bio"`
			ImageURL string `json:"imageUrl"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateCharacter(r.Context(), session, parts[0], body.Name, body.Bio, body.ImageURL)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 2 && parts[1] == "locations" && r.Method == http.MethodGet:
		items, err := s.service.ListLocations(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"locations": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "locations" && r.Method == http.MethodPost:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			ImageURL    string `json:"imageUrl"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateLocation(r.Context(), session, parts[0], body.Name, body.Description, body.ImageURL)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 2 && parts[1] == "rules" && r.Method == http.MethodGet:
		items, err := s.service.ListRules(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"rules": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "rules" && r.Method == http.MethodPost:
		var body struct {
			Category    string `json:"category"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateRule(r.Context(), session, parts[0], body.Category, body.Title, body.Description)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 2 && parts[1] == "search" && r.Method == http.MethodGet:
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		payload, err := s.service.Search(r.Context(), session, parts[0], query, filterType, limit, offset)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeActs(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateAct(r.Context(), session, parts[0], body.Title, body.Summary)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteAct(r.Context(), session, parts[0]))

	case len(parts) == 2 && parts[1] == "sequences" && r.Method == http.MethodGet:
		items, err := s.service.ListSequences(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"sequences": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "sequences" && r.Method == http.MethodPost:
		var body struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
			Index   int    `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateSequence(r.Context(), session, parts[0], body.Title, body.Summary, body.Index)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 3 && parts[1] == "sequences" && parts[2] == "reorder" && r.Method == http.MethodPut:
		var body struct {
			OrderedIDs []string `json:"orderedIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		items, err := s.service.ReorderSequences(r.Context(), session, parts[0], body.OrderedIDs)
		s.respond(w, map[string]any{"sequences": items}, err, http.StatusOK)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeSequences(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateSequence(r.Context(), session, parts[0], body.Title, body.Summary)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteSequence(r.Context(), session, parts[0]))

	case len(parts) == 2 && parts[1] == "scenes" && r.Method == http.MethodGet:
		items, err := s.service.ListScenes(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"scenes": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "scenes" && r.Method == http.MethodPost:
		var body struct {
			Title        string   `json:"title"`
			Summary      string   `json:"summary"`
			LocationID   *string  `json:"locationId"`
			Index        int      `json:"index"`
			CharacterIDs []string `json:"characterIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateScene(r.Context(), session, parts[0], body.Title, body.Summary, body.LocationID, body.Index, body.CharacterIDs)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 3 && parts[1] == "scenes" && parts[2] == "reorder" && r.Method == http.MethodPut:
		var body struct {
			OrderedIDs []string `json:"orderedIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		items, err := s.service.ReorderScenes(r.Context(), session, parts[0], body.OrderedIDs)
		s.respond(w, map[string]any{"scenes": items}, err, http.StatusOK)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeScenes(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Title      string  `json:"title"`
			Summary    string  `json:"summary"`
			LocationID *string `json:"locationId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateScene(r.Context(), session, parts[0], body.Title, body.Summary, body.LocationID)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteScene(r.Context(), session, parts[0]))

	case len(parts) == 2 && parts[1] == "characters" && r.Method == http.MethodPut:
		var body struct {
			CharacterIDs []string `json:"characterIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetSceneCharacters(r.Context(), session, parts[0], body.CharacterIDs)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "shots" && r.Method == http.MethodGet:
		items, err := s.service.ListShots(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"shots": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "shots" && r.Method == http.MethodPost:
		var body struct {
			Description string `json:"description"`
			CameraNotes string `json:"cameraNotes"`
			Index       int    `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateShot(r.Context(), session, parts[0], body.Description, body.CameraNotes, body.Index)
		s.respond(w, payload, err, http.StatusCreated)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeShots(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Description string `json:"description"`
			CameraNotes string `json:"cameraNotes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateShot(r.Context(), session, parts[0], body.Description, body.CameraNotes)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteShot(r.Context(), session, parts[0]))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeCharacters(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		payload, err := s.service.GetCharacter(r.Context(), session, parts[0])
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name     string `json:"name"`
			Bio      string `json:"bio"`
			ImageURL string `json:"imageUrl"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateCharacter(r.Context(), session, parts[0], body.Name, body.Bio, body.ImageURL)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteCharacter(r.Context(), session, parts[0]))

	case len(parts) == 2 && parts[1] == "arcs" && r.Method == http.MethodGet:
		items, err := s.service.ListArcs(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"arcs": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "arcs" && r.Method == http.MethodPost:
		var body struct {
			Title   string `json:"title"`
			Season  int    `json:"season"`
			Summary string `json:"summary"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateArc(r.Context(), session, parts[0], body.Title, body.Season, body.Summary)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 2 && parts[1] == "facts" && r.Method == http.MethodGet:
		items, err := s.service.ListFacts(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"facts": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "facts" && r.Method == http.MethodPost:
		var body struct {
			Fact    string   `json:"fact"`
			KnownBy []string `json:"knownBy"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateFact(r.Context(), session, parts[0], body.Fact, body.KnownBy)
		s.respond(w, payload, err, http.StatusCreated)

	case len(parts) == 2 && parts[1] == "relationships" && r.Method == http.MethodGet:
		payload, err := s.service.ListRelationships(r.Context(), session, parts[0])
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "relationships" && r.Method == http.MethodPost:
		var body struct {
			ToID        string `json:"toId"`
			Label       string `json:"label"`
			Description string `json:"description"`
			Dynamic     string `json:"dynamic"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateRelationship(r.Context(), session, parts[0], body.ToID, body.Label, body.Description, body.Dynamic)
		s.respond(w, payload, err, http.StatusCreated)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeArcs(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Title   string `json:"title"`
			Season  int    `json:"season"`
			Summary string `json:"summary"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateArc(r.Context(), session, parts[0], body.Title, body.Season, body.Summary)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteArc(r.Context(), session, parts[0]))

	case len(parts) == 2 && parts[1] == "beats" && r.Method == http.MethodGet:
		items, err := s.service.ListBeats(r.Context(), session, parts[0])
		s.respond(w, map[string]any{"beats": items}, err, http.StatusOK)

	case len(parts) == 2 && parts[1] == "beats" && r.Method == http.MethodPost:
		var body struct {
			Title   string  `json:"title"`
			Summary string  `json:"summary"`
			SceneID *string `json:"sceneId"`
			Index   int     `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateBeat(r.Context(), session, parts[0], body.Title, body.Summary, body.SceneID, body.Index)
		s.respond(w, payload, err, http.StatusCreated)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeBeats(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Title   string  `json:"title"`
			Summary string  `json:"summary"`
			SceneID *string `json:"sceneId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateBeat(r.Context(), session, parts[0], body.Title, body.Summary, body.SceneID)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteBeat(r.Context(), session, parts[0]))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeFacts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Fact    string   `json:"fact"`
			KnownBy []string `json:"knownBy"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateFact(r.Context(), session, parts[0], body.Fact, body.KnownBy)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteFact(r.Context(), session, parts[0]))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeRelationships(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Label       string `json:"label"`
			Description string `json:"description"`
			Dynamic     string `json:"dynamic"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateRelationship(r.Context(), session, parts[0], body.Label, body.Description, body.Dynamic)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteRelationship(r.Context(), session, parts[0]))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeLocations(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			ImageURL    string `json:"imageUrl"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateLocation(r.Context(), session, parts[0], body.Name, body.Description, body.ImageURL)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteLocation(r.Context(), session, parts[0]))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeRules(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Category    string `json:"category"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateRule(r.Context(), session, parts[0], body.Category, body.Title, body.Description)
		s.respond(w, payload, err, http.StatusOK)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondDelete(w, s.service.DeleteRule(r.Context(), session, parts[0]))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error, status int) {
	if err != nil {
		errStatus, code, message, details := mapError(err)
		writeError(w, errStatus, code, message, details)
		return
	}
	writeJSON(w, status, payload)
}

func (s *HTTPServer) respondDelete(w http.ResponseWriter, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"email":        session.Email,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrSiblingMismatch) {
		return http.StatusConflict, "CONFLICT", "Conflicting concurrent update", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
