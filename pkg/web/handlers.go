package web

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/ecospheres/isomorphe/pkg/batch"
	"github.com/ecospheres/isomorphe/pkg/geonetwork"
	"github.com/ecospheres/isomorphe/pkg/migrator"
	"github.com/ecospheres/isomorphe/pkg/queue"
	"github.com/ecospheres/isomorphe/pkg/transformation"
)

// Connector opens a catalog session for a request. Swappable in tests.
type Connector func(c fiber.Ctx, session CatalogSession) (geonetwork.Client, error)

func defaultConnector(c fiber.Ctx, session CatalogSession) (geonetwork.Client, error) {
	return geonetwork.Connect(c.Context(), session.URL, session.Username, session.Password)
}

type APIHandlers struct {
	queue               *queue.Queue
	validator           *validator.Validate
	transformationsPath string
	connect             Connector
	logger              *slog.Logger
}

func NewAPIHandlers(q *queue.Queue, validate *validator.Validate, transformationsPath string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		queue:               q,
		validator:           validate,
		transformationsPath: transformationsPath,
		connect:             defaultConnector,
		logger:              logger,
	}
}

// GetTransformations lists the available transformations with their declared
// parameters.
func (h *APIHandlers) GetTransformations(c fiber.Ctx) error {
	available, err := transformation.List(h.transformationsPath)
	if err != nil {
		return internalError(c, err)
	}

	out := make([]TransformationResponse, 0, len(available))

	for _, t := range available {
		params, err := t.Params()
		if err != nil {
			return internalError(c, err)
		}

		out = append(out, TransformationResponse{
			Name:        t.Name(),
			DisplayName: t.DisplayName(),
			AlwaysApply: t.AlwaysApply(),
			Params:      params,
		})
	}

	return c.JSON(out)
}

// PreviewSelection runs the selection synchronously and returns the matching
// records, so users can check filters before queuing a transform job.
func (h *APIHandlers) PreviewSelection(c fiber.Ctx) error {
	var req SelectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	gn, err := h.connect(c, req.CatalogSession)
	if err != nil {
		return badGateway(c, err.Error())
	}

	m := migrator.New(gn, nil, h.logger)

	selection, err := m.Select(c.Context(), req.Filters)
	if err != nil {
		return badGateway(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"count":   len(selection),
		"records": selection,
	})
}

// GetGroups lists the groups of a catalog, so callers can pick the target
// group of a create-mode migration.
func (h *APIHandlers) GetGroups(c fiber.Ctx) error {
	var req GroupsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	gn, err := h.connect(c, req.CatalogSession)
	if err != nil {
		return badGateway(c, err.Error())
	}

	groups, err := gn.GetGroups(c.Context())
	if err != nil {
		return badGateway(c, err.Error())
	}

	return c.JSON(groups)
}

// CreateTransformJob queues a transform job.
func (h *APIHandlers) CreateTransformJob(c fiber.Ctx) error {
	var req TransformRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	t, err := transformation.Get(req.Transformation, h.transformationsPath)
	if err != nil {
		return notFound(c, "Unknown transformation: "+req.Transformation)
	}

	// Required params are re-checked by the engine; failing here keeps the
	// error synchronous for the caller.
	params, err := t.Params()
	if err != nil {
		return internalError(c, err)
	}

	for _, p := range params {
		if p.Required {
			if _, ok := req.Params[p.Name]; !ok {
				return badRequest(c, "Missing required parameter: "+p.Name)
			}
		}
	}

	jobID, err := h.queue.EnqueueTransform(c.Context(), queue.TransformPayload{
		Session: queue.Session{
			CatalogURL: req.URL,
			Username:   req.Username,
			Password:   req.Password,
		},
		Transformation: req.Transformation,
		Filters:        req.Filters,
		Params:         req.Params,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(JobResponse{JobID: jobID})
}

// CreateMigrateJob queues a migrate job consuming the transform job from the
// URL path.
func (h *APIHandlers) CreateMigrateJob(c fiber.Ctx) error {
	transformJobID := c.Params("jobID")

	var req MigrateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !req.Overwrite && req.Group == nil {
		return badRequest(c, migrator.ErrGroupRequired.Error())
	}

	if _, err := h.queue.State(c.Context(), transformJobID); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return notFound(c, "Unknown transform job: "+transformJobID)
		}

		return internalError(c, err)
	}

	updateDateStamp := true
	if req.UpdateDateStamp != nil {
		updateDateStamp = *req.UpdateDateStamp
	}

	jobID, err := h.queue.EnqueueMigrate(c.Context(), queue.MigratePayload{
		Session: queue.Session{
			CatalogURL: req.URL,
			Username:   req.Username,
			Password:   req.Password,
		},
		TransformJobID:  transformJobID,
		Statuses:        req.Statuses,
		Overwrite:       req.Overwrite,
		Group:           req.Group,
		UpdateDateStamp: updateDateStamp,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(JobResponse{JobID: jobID})
}

// DownloadMef packages a finished transform job's successful results as a MEF
// archive. The catalog session is needed again to resolve source names for
// the archive's info blocks.
func (h *APIHandlers) DownloadMef(c fiber.Ctx) error {
	jobID := c.Params("jobID")

	var req MefRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.queue.State(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return notFound(c, "Unknown transform job: "+jobID)
		}

		return internalError(c, err)
	}

	if state.Kind != queue.JobTransform || state.Status != queue.JobStatusFinished {
		return badRequest(c, "Job is not a finished transform job: "+jobID)
	}

	var tb batch.TransformBatch
	if err := h.queue.Result(c.Context(), jobID, &tb); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return notFound(c, "Result of transform job expired: "+jobID)
		}

		return internalError(c, err)
	}

	gn, err := h.connect(c, req.CatalogSession)
	if err != nil {
		return badGateway(c, err.Error())
	}

	m := migrator.New(gn, nil, h.logger)

	data, err := m.Mef(c.Context(), &tb)
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+jobID+`.zip"`)

	return c.Send(data)
}

// GetJob reports a job's status and, when finished, its stored batch result.
func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	jobID := c.Params("id")

	state, err := h.queue.State(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return notFound(c, "Unknown job: "+jobID)
		}

		return internalError(c, err)
	}

	resp := JobStatusResponse{JobState: state}

	if state.Status == queue.JobStatusFinished {
		var result any
		if err := h.queue.Result(c.Context(), jobID, &result); err == nil {
			resp.Result = result
		}
	}

	return c.JSON(resp)
}
