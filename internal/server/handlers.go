package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/analysis"
	"github.com/KaramelBytes/padi-analytics/internal/assistant"
	"github.com/KaramelBytes/padi-analytics/internal/observability"
	"github.com/KaramelBytes/padi-analytics/internal/sheets"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// DateLayout is the format of the from/to query parameters.
const DateLayout = "2006-01-02"

type loginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type chatRequest struct {
	Question string `json:"question"`
	FAQ      string `json:"faq"`
}

type chatResponse struct {
	Answer  string          `json:"answer,omitempty"`
	Error   string          `json:"error,omitempty"`
	History []access.Turn   `json:"history"`
	FAQs    []assistant.FAQ `json:"faqs,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity and secret are required"})
		return
	}
	sess, err := s.sessions.Login(req.Identity, req.Secret)
	observability.RecordLogin(err == nil)
	if err != nil {
		s.logger.Info("login rejected", "identity", req.Identity)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	observability.SetActiveSessions(s.sessions.Len())
	s.logger.Info("login", "identity", sess.Identity)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"identity": sess.Identity, "session": sess.ID})
}

func (s *Server) handleLogout(c *gin.Context) {
	if id := sessionID(c); id != "" {
		s.sessions.Logout(id)
		observability.SetActiveSessions(s.sessions.Len())
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDashboard(c *gin.Context) {
	sess := currentSession(c)
	f, err := s.parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ds, ok := s.load(c)
	if !ok {
		return
	}
	view, err := analysis.BuildView(s.resolver, sess.Identity, f, ds)
	if err != nil {
		observability.RecordRender(renderScope(sess, f.Teacher), false)
		switch {
		case errors.Is(err, access.ErrUnknownTeacher), errors.Is(err, analysis.ErrUnknownTask):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.logger.Error("render failed", "identity", sess.Identity, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	observability.RecordRender(renderScope(sess, view.Teacher), true)
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleChatHistory(c *gin.Context) {
	c.JSON(http.StatusOK, historyResponse(currentSession(c)))
}

func (s *Server) handleChatAsk(c *gin.Context) {
	sess := currentSession(c)
	if s.assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant is not configured"})
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	question := req.Question
	if req.FAQ != "" {
		faq, ok := assistant.LookupFAQ(req.FAQ)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown faq " + req.FAQ})
			return
		}
		question = faq.Question
	}
	if strings.TrimSpace(question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": assistant.ErrEmptyQuestion.Error()})
		return
	}
	ds, ok := s.load(c)
	if !ok {
		return
	}
	answer, err := s.assistant.Ask(c.Request.Context(), sess, ds, question)
	resp := historyResponse(sess)
	if err != nil {
		cause := err
		var askErr *assistant.AskError
		if errors.As(err, &askErr) {
			cause = askErr.Err
		}
		resp.Error = "Sorry, I couldn't get an answer: " + cause.Error()
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	resp.Answer = answer
	c.JSON(http.StatusOK, resp)
}

// load fetches the dataset, writing a 502 when the source fails.
func (s *Server) load(c *gin.Context) (*survey.Dataset, bool) {
	ds, err := s.loader.Load(c.Request.Context())
	if err != nil {
		var fe *sheets.FetchError
		if errors.As(err, &fe) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load " + string(fe.Table) + " data: " + fe.Err.Error()})
			return nil, false
		}
		s.logger.Error("dataset load failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return nil, false
	}
	return ds, true
}

func (s *Server) parseFilters(c *gin.Context) (analysis.Filters, error) {
	var f analysis.Filters
	var err error
	if f.From, err = s.parseDate(c.Query("from")); err != nil {
		return f, errors.New("invalid from date, want YYYY-MM-DD")
	}
	if f.To, err = s.parseDate(c.Query("to")); err != nil {
		return f, errors.New("invalid to date, want YYYY-MM-DD")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, errors.New("to date is before from date")
	}
	f.Teacher = c.Query("teacher")
	f.CorrTask = c.Query("corr_task")
	return f, nil
}

func (s *Server) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, v, s.loc)
}

func historyResponse(sess *access.Session) chatResponse {
	h := sess.History()
	resp := chatResponse{History: h}
	if len(h) == 0 {
		resp.FAQs = assistant.FAQs
	}
	return resp
}

func renderScope(sess *access.Session, teacher string) string {
	switch {
	case !sess.IsAdmin():
		return "teacher"
	case teacher == "":
		return "aggregated"
	default:
		return "admin_teacher"
	}
}
