package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/udisondev/gridpath/internal/db"
	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/level"
	"github.com/udisondev/gridpath/internal/navigation"
)

// LevelLister lists stored levels.
type LevelLister interface {
	List(ctx context.Context) ([]db.LevelRow, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithLevels serves the stored level list on GET /levels.
func WithLevels(levels LevelLister) Option {
	return func(s *Server) {
		s.levels = levels
	}
}

// Server is the HTTP query API over a navigation.Service.
type Server struct {
	svc     *navigation.Service
	levels  LevelLister
	metrics http.Handler
	router  *gin.Engine
}

// NewServer builds the router. Call gin.SetMode before to pick the mode.
func NewServer(svc *navigation.Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	s.router = router

	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
	if s.levels != nil {
		s.router.GET("/levels", s.handleLevels)
	}

	s.router.GET("/level", s.handleLevel)
	s.router.GET("/path", s.handlePath)
	s.router.GET("/world-path", s.handleWorldPath)
	s.router.GET("/reach", s.handleReach)
	s.router.GET("/cells", s.handleCell)

	s.router.PUT("/walkable", s.handleSetWalkable)
	s.router.DELETE("/walkable", s.handleClearWalkable)
	s.router.PUT("/interactables", s.handleSetInteractable)

	units := s.router.Group("/units")
	{
		units.PUT("/:id", s.handleAddUnit)
		units.POST("/:id/move", s.handleMoveUnit)
		units.DELETE("/:id", s.handleRemoveUnit)
	}
}

// Cell is a grid coordinate in requests and responses.
type Cell struct {
	X     int `json:"x"`
	Z     int `json:"z"`
	Floor int `json:"floor"`
}

func (c Cell) coord() grid.Coord {
	return grid.Coord{X: c.X, Z: c.Z, Floor: c.Floor}
}

func cellOf(c grid.Coord) Cell {
	return Cell{X: c.X, Z: c.Z, Floor: c.Floor}
}

func cellsOf(coords []grid.Coord) []Cell {
	out := make([]Cell, 0, len(coords))
	for _, c := range coords {
		out = append(out, cellOf(c))
	}
	return out
}

// Position is a world-space point.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func positionsOf(points []grid.Vec3) []Position {
	out := make([]Position, 0, len(points))
	for _, p := range points {
		out = append(out, Position{X: p.X, Y: p.Y, Z: p.Z})
	}
	return out
}

// PathResponse is the result of a path query.
type PathResponse struct {
	Found     bool       `json:"found"`
	Cost      int        `json:"cost"`
	Cells     []Cell     `json:"cells"`
	Waypoints []Position `json:"waypoints"`
}

// LevelResponse describes the served level.
type LevelResponse struct {
	Name   string    `json:"name"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Floors int       `json:"floors"`
	Links  [][2]Cell `json:"links"`
}

// CellResponse is the state of one cell.
type CellResponse struct {
	Cell         Cell     `json:"cell"`
	Walkable     bool     `json:"walkable"`
	Units        []string `json:"units"`
	Interactable string   `json:"interactable,omitempty"`
}

// StoredLevel is one row of GET /levels.
type StoredLevel struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WalkableRequest is the body of PUT /walkable.
type WalkableRequest struct {
	Cell
	Walkable *bool `json:"walkable" binding:"required"`
}

// InteractableRequest is the body of PUT /interactables. An empty name clears it.
type InteractableRequest struct {
	Cell
	Name string `json:"name"`
}

// MoveRequest is the body of POST /units/:id/move.
type MoveRequest struct {
	From Cell `json:"from"`
	To   Cell `json:"to"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// fail maps service errors to status codes.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, grid.ErrOutOfBounds), errors.Is(err, level.ErrUnitNotFound):
		status = http.StatusNotFound
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func queryCoord(c *gin.Context, key string) (grid.Coord, error) {
	return grid.ParseCoord(c.Query(key))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "level": s.svc.LevelName()})
}

func (s *Server) handleLevels(c *gin.Context) {
	rows, err := s.levels.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]StoredLevel, 0, len(rows))
	for _, r := range rows {
		out = append(out, StoredLevel{Name: r.Name, Fingerprint: r.Fingerprint, UpdatedAt: r.UpdatedAt})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLevel(c *gin.Context) {
	w, h, f := s.svc.Dimensions()
	resp := LevelResponse{Name: s.svc.LevelName(), Width: w, Height: h, Floors: f, Links: [][2]Cell{}}
	for _, l := range s.svc.Links() {
		resp.Links = append(resp.Links, [2]Cell{cellOf(l.A), cellOf(l.B)})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePath(c *gin.Context) {
	from, err := queryCoord(c, "from")
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := queryCoord(c, "to")
	if err != nil {
		badRequest(c, err)
		return
	}

	path, err := s.svc.FindPath(from, to)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PathResponse{
		Found:     path.Found(),
		Cost:      path.Cost,
		Cells:     cellsOf(path.Coords),
		Waypoints: positionsOf(s.svc.Waypoints(path)),
	})
}

func (s *Server) handleWorldPath(c *gin.Context) {
	from, err := grid.ParseVec3(c.Query("from"))
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := grid.ParseVec3(c.Query("to"))
	if err != nil {
		badRequest(c, err)
		return
	}

	waypoints, err := s.svc.WorldPath(from, to)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PathResponse{
		Found:     len(waypoints) > 0,
		Cells:     []Cell{},
		Waypoints: positionsOf(waypoints),
	})
}

func (s *Server) handleReach(c *gin.Context) {
	from, err := queryCoord(c, "from")
	if err != nil {
		badRequest(c, err)
		return
	}
	maxDistance, err := strconv.Atoi(c.DefaultQuery("range", "1"))
	if err != nil || maxDistance < 0 {
		badRequest(c, errors.New("range must be a non-negative integer"))
		return
	}

	targets, err := s.svc.MoveTargets(from, maxDistance)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cellsOf(targets))
}

func (s *Server) handleCell(c *gin.Context) {
	at, err := queryCoord(c, "at")
	if err != nil {
		badRequest(c, err)
		return
	}

	info, err := s.svc.Cell(at)
	if err != nil {
		fail(c, err)
		return
	}
	units := make([]string, 0, len(info.Units))
	for _, id := range info.Units {
		units = append(units, string(id))
	}
	c.JSON(http.StatusOK, CellResponse{
		Cell:         cellOf(info.Coord),
		Walkable:     info.Walkable,
		Units:        units,
		Interactable: info.Interactable,
	})
}

func (s *Server) handleSetWalkable(c *gin.Context) {
	var req WalkableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.SetWalkable(c.Request.Context(), req.coord(), *req.Walkable); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearWalkable(c *gin.Context) {
	at, err := queryCoord(c, "at")
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.ClearWalkable(c.Request.Context(), at); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetInteractable(c *gin.Context) {
	var req InteractableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.SetInteractable(req.coord(), req.Name); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAddUnit(c *gin.Context) {
	var req Cell
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.AddUnit(req.coord(), level.UnitID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMoveUnit(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.MoveUnit(level.UnitID(c.Param("id")), req.From.coord(), req.To.coord()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveUnit(c *gin.Context) {
	at, err := queryCoord(c, "at")
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.RemoveUnit(at, level.UnitID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
