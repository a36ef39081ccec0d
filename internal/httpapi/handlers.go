package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrea/airway/internal/chat"
	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/recommend"
	"github.com/kingrea/airway/internal/record"
	"github.com/kingrea/airway/internal/steps"
)

type navigateRequest struct {
	Target steps.StepID        `json:"target" binding:"required"`
	Patch  *record.Patch       `json:"patch,omitempty"`
	Nested *record.NestedPatch `json:"nested,omitempty"`
}

type assignment struct {
	Path  string `json:"path" binding:"required"`
	Value string `json:"value"`
}

type recordRequest struct {
	Patch  *record.Patch       `json:"patch,omitempty"`
	Nested *record.NestedPatch `json:"nested,omitempty"`
	Assign *assignment         `json:"assign,omitempty"`
}

type riskRequest struct {
	Selected []string         `json:"selected"`
	AgeGroup *record.AgeGroup `json:"ageGroup,omitempty"`
}

type recommendRequest struct {
	Record   record.Record `json:"record"`
	Eligible *bool         `json:"eligible,omitempty"`
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// withSession resolves :id and runs fn holding the session's lock.
func (s *Server) withSession(c *gin.Context, fn func(*entry)) {
	e, err := s.lookup(c.Param("id"))
	if err != nil {
		abortError(c, http.StatusNotFound, err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

func (s *Server) listSteps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"initial": steps.Initial, "steps": s.catalog.Steps()})
}

func (s *Server) createSession(c *gin.Context) {
	e := s.newSession()
	c.JSON(http.StatusCreated, e.sess.View())
}

func (s *Server) getSession(c *gin.Context) {
	s.withSession(c, func(e *entry) {
		c.JSON(http.StatusOK, e.sess.View())
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.remove(id) {
		abortError(c, http.StatusNotFound, ErrSessionNotFound)
		return
	}
	s.metrics.SessionsActive.Dec()
	s.log.Info("session %s closed", id)
	c.Status(http.StatusNoContent)
}

func (s *Server) navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	s.withSession(c, func(e *entry) {
		nav := e.sess.Navigator()
		var err error
		switch {
		case req.Patch != nil:
			patch := *req.Patch
			if req.Nested != nil {
				patch = record.Combine(patch, record.Patch{Nested: req.Nested})
			}
			err = nav.NavigateTo(req.Target, &patch)
		case req.Nested != nil:
			err = nav.NavigateNested(req.Target, *req.Nested)
		default:
			err = nav.NavigateTo(req.Target, nil)
		}
		if errors.Is(err, steps.ErrIllegalTransition) {
			s.metrics.Transitions.WithLabelValues("rejected").Inc()
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":      err.Error(),
				"current":    nav.Current(),
				"successors": nav.Catalog().Successors(nav.Current(), nav.Record()),
			})
			return
		}
		if err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		s.metrics.Transitions.WithLabelValues("accepted").Inc()
		c.JSON(http.StatusOK, e.sess.View())
	})
}

func (s *Server) back(c *gin.Context) {
	s.withSession(c, func(e *entry) {
		moved := e.sess.Navigator().GoBack()
		c.JSON(http.StatusOK, gin.H{"moved": moved, "view": e.sess.View()})
	})
}

func (s *Server) reset(c *gin.Context) {
	s.withSession(c, func(e *entry) {
		e.sess.Navigator().Reset()
		c.JSON(http.StatusOK, e.sess.View())
	})
}

func (s *Server) patchRecord(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	var patches []record.Patch
	if req.Patch != nil {
		patches = append(patches, *req.Patch)
	}
	if req.Nested != nil {
		patches = append(patches, record.Patch{Nested: req.Nested})
	}
	if req.Assign != nil {
		p, err := record.Assign(req.Assign.Path, req.Assign.Value)
		if err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		patches = append(patches, p)
	}
	patch := record.Combine(patches...)
	if patch.Empty() {
		abortError(c, http.StatusBadRequest, errors.New("request names no field to update"))
		return
	}
	s.withSession(c, func(e *entry) {
		if _, err := e.sess.Navigator().Apply(patch); err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, e.sess.View())
	})
}

func (s *Server) recommendations(c *gin.Context) {
	s.withSession(c, func(e *entry) {
		rec := e.sess.Navigator().Record()
		eligible := recommend.Eligible(rec)
		c.JSON(http.StatusOK, s.ranked(rec, eligible))
	})
}

func (s *Server) ranked(rec record.Record, eligible bool) gin.H {
	recs := recommend.Evaluate(rec, eligible)
	for _, r := range recs {
		s.metrics.Recommendations.WithLabelValues(string(r.CandidateID)).Inc()
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	return gin.H{"eligible": eligible, "recommendations": recs}
}

func (s *Server) classifyControl(c *gin.Context) {
	var answers classify.ControlAnswers
	if err := c.ShouldBindJSON(&answers); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if !answers.Complete() {
		abortError(c, http.StatusBadRequest, errors.New("all four control questions must be answered"))
		return
	}
	level := classify.Control(answers)
	c.JSON(http.StatusOK, gin.H{"score": answers.Score(), "level": level, "label": level.Label()})
}

func (s *Server) scoreRisk(c *gin.Context) {
	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	catalog := classify.DefaultCatalogs().For(req.AgeGroup)
	score := classify.ScoreRiskFactors(req.Selected, catalog)
	level := classify.RiskBucket(score)
	c.JSON(http.StatusOK, gin.H{"catalog": catalog.Name(), "score": score, "level": level, "label": level.Label()})
}

func (s *Server) recommendStateless(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	eligible := recommend.Eligible(req.Record)
	if req.Eligible != nil {
		eligible = *req.Eligible
	}
	c.JSON(http.StatusOK, s.ranked(req.Record, eligible))
}

// chatTurn streams the reply as server-sent events: "chunk" for each fragment,
// then "done" or "error". It never takes the session lock; a second message
// while a reply is streaming gets 409.
func (s *Server) chatTurn(c *gin.Context) {
	if s.assistant == nil {
		abortError(c, http.StatusServiceUnavailable, errors.New("chat is not configured"))
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	e, err := s.lookup(c.Param("id"))
	if err != nil {
		abortError(c, http.StatusNotFound, err)
		return
	}
	if !e.chatMu.TryLock() {
		abortError(c, http.StatusConflict, ErrChatBusy)
		return
	}
	defer e.chatMu.Unlock()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	err = s.assistant.Ask(c.Request.Context(), e.conv, req.Message, func(chunk string) {
		c.SSEvent("chunk", chunk)
		c.Writer.Flush()
	})
	var chatErr *chat.ChatError
	switch {
	case err == nil:
		s.metrics.ChatRequests.WithLabelValues("ok").Inc()
		c.SSEvent("done", gin.H{"turns": e.conv.Len()})
	case errors.Is(err, context.Canceled):
		s.metrics.ChatRequests.WithLabelValues("cancelled").Inc()
		return
	case errors.As(err, &chatErr):
		s.metrics.ChatRequests.WithLabelValues("error").Inc()
		c.SSEvent("error", chatErr.Message)
	default:
		s.metrics.ChatRequests.WithLabelValues("error").Inc()
		c.SSEvent("error", err.Error())
	}
	c.Writer.Flush()
}
