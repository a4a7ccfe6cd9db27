// Package api exposes the trace engine over HTTP for the viewer shell.
// All endpoints are synchronous; the store is immutable once loaded, so
// concurrent reads need no locking. Read handlers hold a session reference
// for their duration, which keeps a replaced trace mapped until the last
// in-flight read returns.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v5"

	"github.com/ziadomalik/ramwiz/internal/display"
	"github.com/ziadomalik/ramwiz/internal/session"
	"github.com/ziadomalik/ramwiz/internal/trace"
)

// maxSliceCount bounds one entries/extract request so a single call cannot
// allocate an unbounded output buffer. Clients page through larger ranges.
const maxSliceCount = 1 << 20

type Server struct {
	sessions *session.Manager

	mu         sync.Mutex
	cfg        *display.Config
	configPath string
}

// NewServer wires the session manager and the persisted display config.
// cfg may be nil for a fresh install.
func NewServer(sessions *session.Manager, cfg *display.Config, configPath string) *Server {
	if sessions == nil {
		sessions = session.NewManager()
	}
	if cfg == nil {
		cfg = &display.Config{}
	}
	return &Server{
		sessions:   sessions,
		cfg:        cfg,
		configPath: configPath,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/trace", s.handleLoadTrace)
	e.GET("/v1/trace", s.handleTraceMeta)
	e.DELETE("/v1/trace", s.handleUnloadTrace)
	e.GET("/v1/trace/dictionary", s.handleDictionary)
	e.GET("/v1/trace/entries", s.handleEntries)
	e.GET("/v1/trace/index", s.handleIndexForTime)
	e.GET("/v1/trace/extract", s.handleExtract)
	e.GET("/v1/config", s.handleGetConfig)
	e.PUT("/v1/config", s.handlePutConfig)
}

func (s *Server) handleLoadTrace(c *echo.Context) error {
	req, err := decodeJSON[LoadTraceRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Path == "" {
		return writeBadRequest(c, "path is required")
	}

	loaded, prev, err := s.sessions.Load(req.Path)
	if err != nil {
		// The previous trace, if any, stays active.
		return writeError(c, loadErrorStatus(err), "trace_error", err.Error())
	}
	// Drops the manager's reference; readers still inside a handler keep
	// the old mapping alive until they release theirs.
	prev.Release()
	return c.JSON(http.StatusOK, loaded.Meta)
}

func (s *Server) handleTraceMeta(c *echo.Context) error {
	cur := s.sessions.Current()
	if cur == nil {
		return writeNotFound(c, "no trace loaded")
	}
	defer cur.Release()

	h := cur.Store.Header()
	return c.JSON(http.StatusOK, TraceMetaResponse{
		Metadata:    cur.Meta,
		Version:     h.Version,
		NumCommands: h.NumCommands,
	})
}

func (s *Server) handleUnloadTrace(c *echo.Context) error {
	prev := s.sessions.Unload()
	prev.Release()
	return c.JSON(http.StatusOK, map[string]any{"unloaded": prev != nil})
}

func (s *Server) handleDictionary(c *echo.Context) error {
	cur := s.sessions.Current()
	if cur == nil {
		return writeNotFound(c, "no trace loaded")
	}
	defer cur.Release()

	dict, err := cur.Store.LoadDictionary()
	if err != nil {
		return writeError(c, http.StatusUnprocessableEntity, "trace_error", err.Error())
	}
	return c.JSON(http.StatusOK, dict)
}

func (s *Server) handleEntries(c *echo.Context) error {
	cur := s.sessions.Current()
	if cur == nil {
		return writeNotFound(c, "no trace loaded")
	}
	defer cur.Release()

	start, count, err := rangeParams(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	slice, err := cur.Store.LoadEntrySlice(start, count)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	out := make([]EntryDTO, slice.Len())
	for i := range out {
		out[i] = entryDTO(slice.At(i))
	}
	return c.JSON(http.StatusOK, EntriesResponse{Start: start, Entries: out})
}

func (s *Server) handleIndexForTime(c *echo.Context) error {
	cur := s.sessions.Current()
	if cur == nil {
		return writeNotFound(c, "no trace loaded")
	}
	defer cur.Release()

	clk, err := strconv.ParseInt(c.QueryParam("clk"), 10, 64)
	if err != nil {
		return writeBadRequest(c, "clk must be an integer")
	}
	return c.JSON(http.StatusOK, IndexResponse{
		Index:      cur.Store.FindIndexForTime(clk),
		NumEntries: cur.Store.NumEntries(),
	})
}

// handleExtract streams the structure-of-arrays transfer buffer for a range
// of entries, using the active display config for durations and colors.
func (s *Server) handleExtract(c *echo.Context) error {
	cur := s.sessions.Current()
	if cur == nil {
		return writeNotFound(c, "no trace loaded")
	}
	defer cur.Release()

	start, count, err := rangeParams(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	slice, err := cur.Store.LoadEntrySlice(start, count)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	s.mu.Lock()
	cmdCfg := s.cfg.CommandConfig
	s.mu.Unlock()

	buf := trace.Extract(slice, cmdCfg)
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/octet-stream")
	res.WriteHeader(http.StatusOK)
	_, err = res.Write(buf)
	return err
}

func (s *Server) handleGetConfig(c *echo.Context) error {
	s.mu.Lock()
	cfg := *s.cfg
	s.mu.Unlock()
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(c *echo.Context) error {
	req, err := decodeJSON[display.Config](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	s.mu.Lock()
	if req.CommandConfig != nil {
		s.cfg.CommandConfig = req.CommandConfig
	}
	if req.MemoryLayout != nil {
		s.cfg.MemoryLayout = req.MemoryLayout
	}
	cfg := *s.cfg
	s.mu.Unlock()

	if s.configPath != "" {
		if err := display.Save(s.configPath, &cfg); err != nil {
			return writeError(c, http.StatusInternalServerError, "config_error", err.Error())
		}
	}
	return c.JSON(http.StatusOK, cfg)
}

func rangeParams(c *echo.Context) (uint64, int, error) {
	start, err := strconv.ParseUint(c.QueryParam("start"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("start must be a non-negative integer")
	}
	count, err := strconv.Atoi(c.QueryParam("count"))
	if err != nil || count < 0 {
		return 0, 0, errors.New("count must be a non-negative integer")
	}
	if count > maxSliceCount {
		return 0, 0, errors.New("count exceeds the per-request limit")
	}
	return start, count, nil
}

func loadErrorStatus(err error) int {
	switch {
	case errors.Is(err, trace.ErrFileTooShort),
		errors.Is(err, trace.ErrInvalidMagic),
		errors.Is(err, trace.ErrUnsupportedVersion),
		errors.Is(err, trace.ErrCorruptLayout):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
