package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/david/bid-filter/internal/dataset"
	"github.com/david/bid-filter/internal/filter"
	"github.com/david/bid-filter/internal/models"
	"github.com/david/bid-filter/internal/persist"
	"github.com/david/bid-filter/internal/profile"
	"github.com/david/bid-filter/internal/query"
	"github.com/david/bid-filter/internal/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Sessions *session.Registry
	Catalog  *dataset.Catalog
	Profiles *profile.Issuer
	Echo     *echo.Echo
}

type Options struct {
	CORSOrigins []string
}

func NewServer(sessions *session.Registry, profiles *profile.Issuer, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
		}))
	}

	s := &Server{
		Sessions: sessions,
		Catalog:  sessions.Catalog(),
		Profiles: profiles,
		Echo:     e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.POST("/profile", s.handleIssueProfile)
	api.GET("/options", s.handleGetOptions)

	scoped := api.Group("", profile.Middleware(s.Profiles))
	scoped.GET("/opportunities", s.handleListOpportunities)
	scoped.GET("/opportunities/:id", s.handleGetOpportunity)
	scoped.POST("/opportunities/:id/submit", s.handleMarkSubmitted)
	scoped.POST("/sort/:key", s.handleToggleSort)

	scoped.GET("/filters", s.handleGetFilters)
	scoped.PUT("/filters/apply", s.handleApplyFilters)
	scoped.DELETE("/filters", s.handleResetFilters)
	scoped.POST("/filters/keywords", s.handleAddKeyword)
	scoped.DELETE("/filters/keywords/:index", s.handleRemoveKeyword)
	scoped.PATCH("/filters/:field", s.handleSetFilter)
	scoped.DELETE("/filters/:field", s.handleClearFilter)

	scoped.POST("/presets", s.handleSavePreset)
	scoped.POST("/presets/load", s.handleLoadPreset)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Sessions.CloseAll()
	return s.Echo.Shutdown(ctx)
}

// session returns the caller's session. initial is the shareable address the
// request carries, if any.
func (s *Server) session(c echo.Context, initial url.Values) (*session.Session, error) {
	id, err := profile.FromContext(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unknown profile"})
	}
	sess, err := s.Sessions.Get(c.Request().Context(), id, initial)
	if err != nil {
		c.Logger().Errorf("Failed to open session for %s: %v", id, err)
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to open session"})
	}
	return sess, nil
}

func actionError(c echo.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusRequestTimeout, map[string]string{"error": "Request cancelled"})
	}
	c.Logger().Errorf("Filter action failed: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type profileResponse struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Token     string    `json:"token"`
}

func (s *Server) handleIssueProfile(c echo.Context) error {
	id := uuid.New()
	token, err := s.Profiles.Issue(id)
	if err != nil {
		c.Logger().Errorf("Failed to issue profile: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to issue profile"})
	}
	profile.SetCookie(c, s.Profiles, token)
	return c.JSON(http.StatusCreated, profileResponse{ProfileID: id, Token: token})
}

type optionsResponse struct {
	query.FacetOptions
	QuickPeriods []int    `json:"quick_periods"`
	Statuses     []string `json:"statuses"`
	SortKeys     []string `json:"sort_keys"`
}

func (s *Server) handleGetOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, optionsResponse{
		FacetOptions: query.Options(s.Catalog.Records()),
		QuickPeriods: filter.QuickPeriods,
		Statuses:     models.Statuses,
		SortKeys: []string{
			string(query.SortDueDate),
			string(query.SortPercentComplete),
			string(query.SortFitScore),
		},
	})
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	sess, err := s.session(c, c.QueryParams())
	if sess == nil {
		return err
	}
	if c.QueryParams().Has("sort") {
		sess.SetOrder(query.ParseOrder(c.QueryParam("sort"), c.QueryParam("dir")))
	}
	return c.JSON(http.StatusOK, sess.Results(sess.Order()))
}

func (s *Server) handleToggleSort(c echo.Context) error {
	key, ok := query.ParseSortKey(c.Param("key"))
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown sort key"})
	}
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Results(sess.ToggleSort(key)))
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, err := s.Catalog.Get(dataset.RecordID(c.Param("id")))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleMarkSubmitted(c echo.Context) error {
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	opp, err := sess.MarkSubmitted(c.Request().Context(), dataset.RecordID(c.Param("id")))
	if errors.Is(err, dataset.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, opp)
}

type filtersResponse struct {
	Filters filter.Filters `json:"filters"`
	session.Status
	Filtered    bool   `json:"filtered"`
	MaxKeywords int    `json:"max_keywords"`
	ShareQuery  string `json:"share_query"`
}

func filtersJSON(c echo.Context, code int, sess *session.Session) error {
	f := sess.Filters()
	return c.JSON(code, filtersResponse{
		Filters:     f,
		Status:      sess.Status(),
		Filtered:    filter.IsFiltered(f),
		MaxKeywords: sess.MaxKeywords(),
		ShareQuery:  sess.ShareQuery(),
	})
}

func (s *Server) handleGetFilters(c echo.Context) error {
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	return filtersJSON(c, http.StatusOK, sess)
}

type valueRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetFilter(c echo.Context) error {
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	update, err := filter.ParseUpdate(c.Param("field"), req.Value)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	if _, err := sess.SetField(c.Request().Context(), update); err != nil {
		return actionError(c, err)
	}
	return filtersJSON(c, http.StatusOK, sess)
}

func (s *Server) handleClearFilter(c echo.Context) error {
	field, ok := filter.LookupField(c.Param("field"))
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown filter field"})
	}
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	if _, err := sess.SetField(c.Request().Context(), filter.Clear(field)); err != nil {
		return actionError(c, err)
	}
	return filtersJSON(c, http.StatusOK, sess)
}

func (s *Server) handleAddKeyword(c echo.Context) error {
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	_, added, err := sess.AddKeyword(c.Request().Context(), req.Value)
	if err != nil {
		return actionError(c, err)
	}
	if !added {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Keyword is blank, duplicate or over the limit"})
	}
	return filtersJSON(c, http.StatusOK, sess)
}

func (s *Server) handleRemoveKeyword(c echo.Context) error {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid keyword index"})
	}
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	if _, err := sess.RemoveKeyword(c.Request().Context(), idx); err != nil {
		return actionError(c, err)
	}
	return filtersJSON(c, http.StatusOK, sess)
}

type applyErrorResponse struct {
	Error  string        `json:"error"`
	Issues filter.Issues `json:"issues"`
}

func (s *Server) handleApplyFilters(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	draft, err := filter.DecodeSnapshot(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid filter draft"})
	}

	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	_, issues, err := sess.Apply(c.Request().Context(), draft)
	if errors.Is(err, session.ErrApplyDisabled) {
		return c.JSON(http.StatusUnprocessableEntity, applyErrorResponse{Error: err.Error(), Issues: issues})
	}
	if err != nil {
		return actionError(c, err)
	}
	return filtersJSON(c, http.StatusOK, sess)
}

func (s *Server) handleResetFilters(c echo.Context) error {
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	if _, err := sess.Reset(c.Request().Context()); err != nil {
		return actionError(c, err)
	}
	return filtersJSON(c, http.StatusOK, sess)
}

func (s *Server) handleSavePreset(c echo.Context) error {
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	if err := sess.SavePreset(c.Request().Context()); err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleLoadPreset(c echo.Context) error {
	sess, err := s.session(c, nil)
	if sess == nil {
		return err
	}
	if _, err := sess.LoadPreset(c.Request().Context()); err != nil {
		if errors.Is(err, persist.ErrNoPreset) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return actionError(c, err)
	}
	return filtersJSON(c, http.StatusOK, sess)
}
