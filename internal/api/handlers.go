package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/todoplus/internal/apperr"
	"github.com/nhle/todoplus/internal/attachment"
	"github.com/nhle/todoplus/internal/model"
)

type userDataRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type addProjectRequest struct {
	Name   string `json:"name" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type projectRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
}

type projectNameRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

type completeProjectRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Completed *bool  `json:"completed" validate:"required"`
}

type taskRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
}

type nameTaskRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

type completeTaskRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	Completed *bool  `json:"completed" validate:"required"`
}

type dueDateRequest struct {
	ProjectID string          `json:"projectId" validate:"required"`
	TaskID    string          `json:"taskId" validate:"required"`
	DueDate   json.RawMessage `json:"dueDate"`
}

type reminderDateRequest struct {
	ProjectID    string          `json:"projectId" validate:"required"`
	TaskID       string          `json:"taskId" validate:"required"`
	ReminderDate json.RawMessage `json:"reminderDate"`
}

type subtaskRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	SubtaskID string `json:"subtaskId" validate:"required"`
}

type renameSubtaskRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	SubtaskID string `json:"subtaskId" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

type completeSubtaskRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	SubtaskID string `json:"subtaskId" validate:"required"`
	Completed *bool  `json:"completed" validate:"required"`
}

type noteRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	NoteID    string `json:"noteId" validate:"required"`
}

type renameNoteRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
	NoteID    string `json:"noteId" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

type uploadRequest struct {
	Name        string `json:"name" validate:"required"`
	Base64      string `json:"base64" validate:"required"`
	ContentType string `json:"contentType"`
	// Type is the field name browsers' File objects use.
	Type string `json:"type"`
}

type saveAttachmentsRequest struct {
	ProjectID   string          `json:"projectId" validate:"required"`
	TaskID      string          `json:"taskId" validate:"required"`
	Attachments []uploadRequest `json:"attachments" validate:"required,min=1,dive"`
}

type userRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type createEntryRequest struct {
	ProductivityRecordID string      `json:"productivityRecordId" validate:"required_without=UserID"`
	UserID               string      `json:"userId"`
	Task                 *model.Task `json:"task" validate:"required"`
}

type setGoalRequest struct {
	ProductivityRecordID string `json:"productivityRecordId" validate:"required"`
	ProductivityGoal     *int64 `json:"productivityGoal" validate:"required,min=0"`
}

type setWeeklyGoalRequest struct {
	UserID                 string `json:"userId" validate:"required"`
	WeeklyProductivityGoal *int64 `json:"weeklyProductivityGoal" validate:"required,min=0"`
}

// respond writes v as JSON, or the error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	var req userDataRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.svc.UserData(r.Context(), req.Email)
	s.respond(w, r, data, err)
}

func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[addProjectRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.AddProject(r.Context(), req.UserID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPopulatedProject(r.Context(), chi.URLParam(r, "projectId"))
	s.respond(w, r, p, err)
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[projectNameRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.RenameProject(r.Context(), req.ProjectID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleCompleteProject(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[completeProjectRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.CompleteProject(r.Context(), req.ProjectID, *req.Completed)
	s.respond(w, r, p, err)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[projectRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteProject(r.Context(), req.ProjectID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[projectNameRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.AddTask(r.Context(), req.ProjectID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleRenameTask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[nameTaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.RenameTask(r.Context(), req.ProjectID, req.TaskID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[taskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.DeleteTask(r.Context(), req.ProjectID, req.TaskID)
	s.respond(w, r, p, err)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[completeTaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.CompleteTask(r.Context(), req.ProjectID, req.TaskID, *req.Completed)
	s.respond(w, r, p, err)
}

func (s *Server) handleSetDueDate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[dueDateRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	due, err := requiredDate("dueDate", req.DueDate, s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.SetDueDate(r.Context(), req.ProjectID, req.TaskID, due)
	s.respond(w, r, p, err)
}

func (s *Server) handleSetReminderDate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[reminderDateRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	at, err := requiredDate("reminderDate", req.ReminderDate, s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.SetReminderDate(r.Context(), req.ProjectID, req.TaskID, at)
	s.respond(w, r, p, err)
}

func (s *Server) handleAddSubtask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[nameTaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.AddSubtask(r.Context(), req.ProjectID, req.TaskID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleRenameSubtask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[renameSubtaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.RenameSubtask(r.Context(), req.ProjectID, req.TaskID, req.SubtaskID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleCompleteSubtask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[completeSubtaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.CompleteSubtask(r.Context(), req.ProjectID, req.TaskID, req.SubtaskID, *req.Completed)
	s.respond(w, r, p, err)
}

func (s *Server) handleDeleteSubtask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[subtaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.DeleteSubtask(r.Context(), req.ProjectID, req.TaskID, req.SubtaskID)
	s.respond(w, r, p, err)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[nameTaskRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.AddNote(r.Context(), req.ProjectID, req.TaskID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleRenameNote(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[renameNoteRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.RenameNote(r.Context(), req.ProjectID, req.TaskID, req.NoteID, req.Name)
	s.respond(w, r, p, err)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[noteRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.DeleteNote(r.Context(), req.ProjectID, req.TaskID, req.NoteID)
	s.respond(w, r, p, err)
}

func (s *Server) handleSaveAttachments(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[saveAttachmentsRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	uploads := make([]attachment.Upload, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = a.Type
		}
		uploads = append(uploads, attachment.Upload{Name: a.Name, Base64: a.Base64, ContentType: ct})
	}
	p, err := s.svc.SaveAttachments(r.Context(), req.ProjectID, req.TaskID, uploads)
	s.respond(w, r, p, err)
}

func (s *Server) handleEnsureToday(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[userRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.svc.EnsureTodayRecord(r.Context(), req.UserID)
	s.respond(w, r, rec, err)
}

// handleCreateEntry appends to the named record, or to the user's record
// for today when only userId is given.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[createEntryRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ProductivityRecordID != "" {
		rec, err := s.svc.CreateProductivityEntry(r.Context(), req.ProductivityRecordID, *req.Task)
		s.respond(w, r, rec, err)
		return
	}
	rec, err := s.svc.RecordSession(r.Context(), req.UserID, *req.Task)
	s.respond(w, r, rec, err)
}

func (s *Server) handleRecomputeToday(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[userRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.svc.RecomputeToday(r.Context(), req.UserID)
	s.respond(w, r, rec, err)
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[setGoalRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.svc.SetGoal(r.Context(), req.ProductivityRecordID, *req.ProductivityGoal)
	s.respond(w, r, rec, err)
}

func (s *Server) handleSetWeeklyGoal(w http.ResponseWriter, r *http.Request) {
	req, err := decodeData[setWeeklyGoalRequest](s, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.SetWeeklyGoal(r.Context(), req.UserID, *req.WeeklyProductivityGoal); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("range"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			e := apperr.Invalid("range must be a number of days")
			e.Fields = []apperr.FieldError{{Field: "range", Rule: "number"}}
			s.writeError(w, r, e)
			return
		}
		days = n
	}
	stats, err := s.svc.Stats(r.Context(), chi.URLParam(r, "userId"), days)
	s.respond(w, r, stats, err)
}
