package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type projectRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if p, ok := paginate(c, projects); ok {
		c.JSON(http.StatusOK, p)
	}
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if trimmed(req.Name) == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), *req.Name)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleUpdateProject renames or recolors an existing project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	var req projectRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	project, err := s.store.UpdateProject(c.Request.Context(), c.Param("id"), trimmed(req.Name), trimmed(req.Color))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleDeleteProject removes a project and all related tasks.
func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.store.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	c.Status(http.StatusNoContent)
}
