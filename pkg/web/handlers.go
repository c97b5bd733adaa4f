// Package web provides HTTP handlers and REST API endpoints for flow
// management and conversation ingress.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
	"github.com/zapdesk/flowengine/pkg/services"
)

// OrganizationHeader scopes every flow operation to a tenant.
const OrganizationHeader = "X-Organization-ID"

// EditorHeader identifies the acting user for canvas versioning.
const EditorHeader = "X-User-ID"

type APIHandlers struct {
	flowService    *services.Flow
	sessionService *services.Session
	validator      *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	sessionService *services.Session,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:    flowService,
		sessionService: sessionService,
		validator:      validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flow engine API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flow engine API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	flows, err := h.flowService.List(c.Context(), organizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.flowService.FetchByID(c.Context(), organizationID, id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		OrganizationID:   organizationID,
		Name:             req.Name,
		TriggerEnabled:   req.TriggerEnabled,
		TriggerKeywords:  req.TriggerKeywords,
		TriggerMatchMode: models.TriggerMatchMode(req.TriggerMatchMode),
		ConnectionIDs:    req.ConnectionIDs,
	}

	created, err := h.flowService.Create(c.Context(), flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.flowService.FetchByID(c.Context(), organizationID, id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	// Apply partial updates; the canvas is managed by the canvas endpoints.
	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.TriggerEnabled != nil {
		existing.TriggerEnabled = *req.TriggerEnabled
	}

	if req.TriggerKeywords != nil {
		existing.TriggerKeywords = req.TriggerKeywords
	}

	if req.TriggerMatchMode != nil {
		existing.TriggerMatchMode = models.TriggerMatchMode(*req.TriggerMatchMode)
	}

	if req.ConnectionIDs != nil {
		existing.ConnectionIDs = req.ConnectionIDs
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	updated, err := h.flowService.Update(c.Context(), organizationID, id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	err := h.flowService.Delete(c.Context(), organizationID, id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateFlow(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	newID, err := h.flowService.Duplicate(c.Context(), organizationID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": newID})
}

func (h *APIHandlers) GetCanvas(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	nodes, edges, err := h.flowService.GetCanvas(c.Context(), organizationID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CanvasResponse{Nodes: nodes, Edges: edges})
}

func (h *APIHandlers) SaveCanvas(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req SaveCanvasRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid canvas payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.flowService.SaveCanvas(c.Context(), organizationID, id, req.Nodes, req.Edges, c.Get(EditorHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(SaveCanvasResponse{Version: version})
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	versions, err := h.flowService.ListVersions(c.Context(), organizationID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"versions": versions})
}

func (h *APIHandlers) RestoreVersion(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	version, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return badRequest(c, "Version must be an integer")
	}

	newVersion, err := h.flowService.RestoreVersion(c.Context(), organizationID, id, version, c.Get(EditorHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(SaveCanvasResponse{Version: newVersion})
}

// ReceiveMessage ingests one inbound conversation message and hands it to the
// worker through the event bus.
func (h *APIHandlers) ReceiveMessage(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	var req InboundMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.sessionService.ReceiveMessage(c.Context(), organizationID, req.ConnectionID, req.ConversationID, req.Text)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) StartSession(c fiber.Ctx) error {
	organizationID := c.Get(OrganizationHeader)
	if organizationID == "" {
		return badRequest(c, "Organization ID header is required")
	}

	var req StartSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.sessionService.RequestStart(c.Context(), organizationID, req.FlowID, req.ConversationID, req.StartedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) CancelSession(c fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	if conversationID == "" {
		return badRequest(c, "Conversation ID is required")
	}

	var req CancelSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.sessionService.RequestCancel(c.Context(), conversationID, req.RequestedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	if conversationID == "" {
		return badRequest(c, "Conversation ID is required")
	}

	session, err := h.sessionService.ActiveByConversation(c.Context(), conversationID)
	if err != nil {
		if persistence.IsSessionNotFound(err) {
			return notFound(c, "No active session for conversation")
		}

		return internalError(c, err)
	}

	return c.JSON(session)
}
