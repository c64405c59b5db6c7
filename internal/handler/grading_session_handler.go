package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/gradingconfig"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

const (
	// closeSessionNotFound is sent when the streamed session is unmounted.
	closeSessionNotFound = 4404
	streamBuffer         = 16
)

// GradingSessionHandler exposes the configuration form of a grading session.
type GradingSessionHandler struct {
	sessions     service.SessionService
	uploads      service.UploadService
	validator    *validator.Validate
	logger       zerolog.Logger
	pingInterval time.Duration
}

// NewGradingSessionHandler constructs the session handler.
func NewGradingSessionHandler(sessions service.SessionService, uploads service.UploadService, validator *validator.Validate, logger zerolog.Logger) *GradingSessionHandler {
	return &GradingSessionHandler{
		sessions:     sessions,
		uploads:      uploads,
		validator:    validator,
		logger:       logger.With().Str("component", "grading_session_handler").Logger(),
		pingInterval: 30 * time.Second,
	}
}

// Register binds session routes under the provided router group.
func (h *GradingSessionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Post("/:id/reset", h.reset)

	router.Post("/:id/papers", h.addPapers)
	router.Put("/:id/papers/text", h.setPapersText)
	router.Post("/:id/papers/reset", h.resetPapers)
	router.Delete("/:id/papers/:index", h.removePaper)

	router.Post("/:id/rubric/files", h.addRubricFiles)
	router.Delete("/:id/rubric/files/:index", h.removeRubricFile)
	router.Put("/:id/rubric/text", h.setRubricText)
	router.Post("/:id/rubric/reset", h.resetRubric)

	router.Put("/:id/thresholds/:section", h.setThreshold)
	router.Put("/:id/weightages/:section", h.setWeightage)
	router.Post("/:id/criteria/reset", h.resetCriteria)

	router.Get("/:id/ws", h.upgrade, websocket.New(h.stream))
}

func (h *GradingSessionHandler) create(c *fiber.Ctx) error {
	session := h.sessions.Create()
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", h.sessionResponse(session))
}

func (h *GradingSessionHandler) get(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "session retrieved", h.sessionResponse(session))
}

func (h *GradingSessionHandler) delete(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "session deleted", nil)
}

func (h *GradingSessionHandler) reset(c *fiber.Ctx) error {
	return h.mutate(c, "reset", "session reset", func(store *gradingconfig.Store) error {
		store.Reset()
		return nil
	})
}

func (h *GradingSessionHandler) addPapers(c *fiber.Ctx) error {
	return h.addFiles(c, "add_papers", "papers added", func(store *gradingconfig.Store, refs []gradingconfig.FileRef) error {
		return store.AddPapers(refs...)
	})
}

func (h *GradingSessionHandler) removePaper(c *fiber.Ctx) error {
	index, err := parseIndex(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid index")
	}
	return h.mutate(c, "remove_paper", "paper removed", func(store *gradingconfig.Store) error {
		return store.RemovePaper(index)
	})
}

func (h *GradingSessionHandler) setPapersText(c *fiber.Ctx) error {
	var req dto.TextUpdateRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	return h.mutate(c, "set_papers_text", "papers text updated", func(store *gradingconfig.Store) error {
		store.SetPapersText(req.Text)
		return nil
	})
}

func (h *GradingSessionHandler) resetPapers(c *fiber.Ctx) error {
	return h.mutate(c, "reset_papers", "papers reset", func(store *gradingconfig.Store) error {
		store.ResetPapers()
		return nil
	})
}

func (h *GradingSessionHandler) addRubricFiles(c *fiber.Ctx) error {
	return h.addFiles(c, "add_rubric_files", "rubric files added", func(store *gradingconfig.Store, refs []gradingconfig.FileRef) error {
		return store.AddRubricFiles(refs...)
	})
}

func (h *GradingSessionHandler) removeRubricFile(c *fiber.Ctx) error {
	index, err := parseIndex(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid index")
	}
	return h.mutate(c, "remove_rubric_file", "rubric file removed", func(store *gradingconfig.Store) error {
		return store.RemoveRubricFile(index)
	})
}

func (h *GradingSessionHandler) setRubricText(c *fiber.Ctx) error {
	var req dto.TextUpdateRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	return h.mutate(c, "set_rubric_text", "rubric text updated", func(store *gradingconfig.Store) error {
		store.SetRubricText(req.Text)
		return nil
	})
}

func (h *GradingSessionHandler) resetRubric(c *fiber.Ctx) error {
	return h.mutate(c, "reset_rubric", "rubric reset", func(store *gradingconfig.Store) error {
		store.ResetRubric()
		return nil
	})
}

func (h *GradingSessionHandler) setThreshold(c *fiber.Ctx) error {
	return h.setCriterion(c, "set_threshold", "threshold updated", (*gradingconfig.Store).SetThreshold)
}

func (h *GradingSessionHandler) setWeightage(c *fiber.Ctx) error {
	return h.setCriterion(c, "set_weightage", "weightage updated", (*gradingconfig.Store).SetWeightage)
}

func (h *GradingSessionHandler) resetCriteria(c *fiber.Ctx) error {
	return h.mutate(c, "reset_criteria", "thresholds and weightages reset", func(store *gradingconfig.Store) error {
		store.ResetThresholdsAndWeightages()
		return nil
	})
}

func (h *GradingSessionHandler) setCriterion(c *fiber.Ctx, operation, message string, apply func(*gradingconfig.Store, gradingconfig.Section, float64) error) error {
	section, err := gradingconfig.ParseSection(c.Params("section"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req dto.CriterionUpdateRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	return h.mutate(c, operation, message, func(store *gradingconfig.Store) error {
		return apply(store, section, *req.Value)
	})
}

func (h *GradingSessionHandler) addFiles(c *fiber.Ctx, operation, message string, apply func(*gradingconfig.Store, []gradingconfig.FileRef) error) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "files are required")
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "files are required")
	}

	refs, err := h.uploads.UploadAll(requestContext(c), files)
	if err != nil {
		observability.StoreMutations().WithLabelValues(operation, "rejected").Inc()
		return respondError(c, h.logger, err)
	}

	if err := apply(session.Store, refs); err != nil {
		observability.StoreMutations().WithLabelValues(operation, "rejected").Inc()
		return respondError(c, h.logger, err)
	}
	observability.StoreMutations().WithLabelValues(operation, "ok").Inc()
	requestLogger(h.logger, c).Debug().Str("session_id", session.ID).Int("files", len(refs)).Msg(message)
	return utils.SendSuccess(c, message, h.sessionResponse(session))
}

func (h *GradingSessionHandler) mutate(c *fiber.Ctx, operation, message string, apply func(*gradingconfig.Store) error) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := apply(session.Store); err != nil {
		observability.StoreMutations().WithLabelValues(operation, "rejected").Inc()
		return respondError(c, h.logger, err)
	}
	observability.StoreMutations().WithLabelValues(operation, "ok").Inc()
	return utils.SendSuccess(c, message, h.sessionResponse(session))
}

func (h *GradingSessionHandler) bind(c *fiber.Ctx, target interface{}) error {
	if err := c.BodyParser(target); err != nil {
		return errInvalidBody
	}
	return h.validator.Struct(target)
}

func (h *GradingSessionHandler) sessionResponse(session service.Session) dto.SessionResponse {
	return dto.NewSessionResponse(session.ID, session.CreatedAt, session.Store.Snapshot())
}

func (h *GradingSessionHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.sessions.Get(c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

// stream pushes the current state on connect and again after every mutation.
func (h *GradingSessionHandler) stream(conn *websocket.Conn) {
	sessionID := conn.Params("id")
	session, err := h.sessions.Get(sessionID)
	if err != nil {
		h.closeStream(conn, closeSessionNotFound, "session not found")
		return
	}

	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan gradingconfig.State, streamBuffer)
	unsubscribe := session.Store.Subscribe(func(state gradingconfig.State) {
		for {
			select {
			case updates <- state:
				return
			default:
			}
			// Slow reader: drop the oldest pending state, the newest one supersedes it.
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := h.logger.With().Str("session_id", sessionID).Logger()
	logger.Debug().Msg("state stream connected")
	defer logger.Debug().Msg("state stream disconnected")

	initial := session.Store.Snapshot()
	if err := h.send(conn, sessionID, initial); err != nil {
		return
	}
	lastVersion := initial.Version

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-updates:
			// Observers of concurrent mutations may deliver out of order.
			if state.Version <= lastVersion {
				continue
			}
			if err := h.send(conn, sessionID, state); err != nil {
				return
			}
			lastVersion = state.Version
		case <-session.Done:
			h.closeStream(conn, closeSessionNotFound, "session not found")
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *GradingSessionHandler) send(conn *websocket.Conn, sessionID string, state gradingconfig.State) error {
	return conn.WriteJSON(dto.StateEvent{Type: "state", SessionID: sessionID, State: state})
}

func (h *GradingSessionHandler) closeStream(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = conn.Close()
}
