package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/moviestore/internal/access"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/repository"
)

// MovieHandler serves the relational movie records and the document-store
// director catalogue.
type MovieHandler struct {
	Svc *access.Service
}

func NewMovieHandler(s *access.Service) *MovieHandler { return &MovieHandler{Svc: s} }

// Create: POST /v1/movies
func (h *MovieHandler) Create(c echo.Context) error {
	var m model.Movie
	if err := c.Bind(&m); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	m.MovieID = 0

	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.CreateMovie(ctx, m)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Get: GET /v1/movies/:id
func (h *MovieHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Svc.GetMovie(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Patch: PATCH /v1/movies/:id with a JSON object of the fields to change.
func (h *MovieHandler) Patch(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	patch, err := decodeValues(model.Movies, c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Svc.UpdateMovie(ctx, id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// List: GET /v1/movies
//
// With any of from, to or min_rating the result is the release window,
// newest and best rated first; otherwise a page by id using limit and
// offset.  from and to are epoch days.
func (h *MovieHandler) List(c echo.Context) error {
	limit, err1 := queryInt(c, "limit", 50)
	offset, err2 := queryInt(c, "offset", 0)
	from, err3 := queryInt(c, "from", 0)
	to, err4 := queryInt(c, "to", 0)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || limit < 0 || offset < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid query"})
	}
	if limit > 500 {
		limit = 500
	}
	var minRating float64
	if s := c.QueryParam("min_rating"); s != "" {
		if err := echo.QueryParamsBinder(c).Float64("min_rating", &minRating).BindError(); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid query"})
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		movies []model.Movie
		err    error
	)
	if from != 0 || to != 0 || minRating != 0 {
		movies, err = h.Svc.TopRatedBetween(ctx, repository.ReleaseWindow{
			From: from, To: to, MinRating: minRating, Limit: int(limit),
		})
	} else {
		movies, err = h.Svc.ListMovies(ctx, int(limit), int(offset))
	}
	if err != nil {
		return writeError(c, err)
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return c.JSON(http.StatusOK, movies)
}

// DirectorMovies: GET /v1/directors/:name/movies
func (h *MovieHandler) DirectorMovies(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "director required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	docs, err := h.Svc.ListDirectorMovies(ctx, name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

// CreateDoc: POST /v1/movie-docs
func (h *MovieHandler) CreateDoc(c echo.Context) error {
	var d model.MovieDoc
	if err := c.Bind(&d); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d.ID = ""

	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.AddMovieDocument(ctx, d)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
