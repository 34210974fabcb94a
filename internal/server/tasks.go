package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"todosync/internal/models"
)

type taskUpdateRequest struct {
	Description *string `json:"description"`
}

// handleListTasks lists every task, or the tasks of one project when
// project_id is given.
func (s *Server) handleListTasks(c *gin.Context) {
	var (
		tasks []models.Task
		err   error
	)
	if projectID := c.Query("project_id"); projectID != "" {
		tasks, err = s.store.ListProjectTasks(c.Request.Context(), projectID)
	} else {
		tasks, err = s.store.ListTasks(c.Request.Context())
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if p, ok := paginate(c, tasks); ok {
		c.JSON(http.StatusOK, p)
	}
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req models.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Content == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("content is required"))
		return
	}
	if req.ProjectID == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("project_id is required"))
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.store.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleUpdateTask changes the description of a task. Other fields are
// owned by the user and are ignored.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	id := c.Param("id")
	if req.Description != nil {
		if err := s.store.UpdateTaskDescription(c.Request.Context(), id, *req.Description); err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.store.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	c.Status(http.StatusNoContent)
}
