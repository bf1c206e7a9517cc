package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/neurlang/convtrain/summary"
)

// Server answers summary queries over HTTP
type Server struct {
	r *summary.Reader
}

// Routes returns the router of the JSON API
func (s *Server) Routes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(cors.New(corsConfig))

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "convtrain summaries") })
	r.GET("/api/runs", s.RunsHandler)
	r.GET("/api/tags", s.TagsHandler)
	r.GET("/api/scalars", s.ScalarsHandler)
	r.GET("/api/texts", s.TextsHandler)
	return r
}

func (s *Server) RunsHandler(c *gin.Context) {
	runs, err := s.r.Runs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": nonNil(runs)})
}

func (s *Server) TagsHandler(c *gin.Context) {
	tags, err := s.r.Tags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": nonNil(tags)})
}

func (s *Server) ScalarsHandler(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}
	scalars, err := s.r.Scalars(c.Request.Context(), tag)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag, "scalars": nonNil(scalars)})
}

func (s *Server) TextsHandler(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}
	texts, err := s.r.Texts(c.Request.Context(), tag)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag, "texts": nonNil(texts)})
}

// nonNil makes empty results encode as [] instead of null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
