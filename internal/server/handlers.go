package server

import (
	"net/http"
	"strings"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/engine"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/feed"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// ScrollRequest reports the renderer's scroll position.
type ScrollRequest struct {
	Offset       float64 `json:"offset"`
	Viewport     float64 `json:"viewport"`
	ScrollHeight float64 `json:"scrollHeight"`
}

// SwipeRequest moves the active item.
type SwipeRequest struct {
	Direction feed.Direction `json:"direction"`
}

// TouchRequest is one phase of a touch gesture.
type TouchRequest struct {
	Phase string  `json:"phase"` // start, move or end
	Y     float64 `json:"y"`
}

// MediaEventRequest identifies the element a renderer report is about.
type MediaEventRequest struct {
	Index *int `json:"index"`
}

// TextRequest carries comment or reply text.
type TextRequest struct {
	Text string `json:"text"`
}

// ReportRequest carries the reason a media item is reported.
type ReportRequest struct {
	Reason string `json:"reason"`
}

// SearchInputRequest carries the raw search box text.
type SearchInputRequest struct {
	Raw string `json:"raw"`
}

// VisibilityRequest reports renderer visibility.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

func (m *Mux) handleFeed(w http.ResponseWriter, r *http.Request) error {
	view, err := m.e.Feed()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, view)
}

func (m *Mux) handleScroll(w http.ResponseWriter, r *http.Request) error {
	var req ScrollRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if req.Viewport <= 0 {
		return errordefs.New(errordefs.KindBadRequest, "viewport must be > 0")
	}
	view, err := m.e.Scroll(req.Offset, req.Viewport, req.ScrollHeight)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, view)
}

func (m *Mux) handleSwipe(w http.ResponseWriter, r *http.Request) error {
	var req SwipeRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	view, err := m.e.Swipe(req.Direction)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, view)
}

func (m *Mux) handleTouch(w http.ResponseWriter, r *http.Request) error {
	var req TouchRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := m.e.Touch(req.Phase, req.Y); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handleFilters(w http.ResponseWriter, r *http.Request) error {
	var req engine.FilterUpdate
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := m.e.SetFilters(req); err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, req)
}

func (m *Mux) handleTogglePlay(w http.ResponseWriter, r *http.Request) error {
	state, err := m.e.TogglePlay()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, state)
}

func (m *Mux) handleToggleMute(w http.ResponseWriter, r *http.Request) error {
	state, err := m.e.ToggleMute()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, state)
}

// handleMediaEvent handles POST /v1/playback/{ended|buffering|ready|failed}
func (m *Mux) handleMediaEvent(w http.ResponseWriter, r *http.Request) error {
	var req MediaEventRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if req.Index == nil {
		return errordefs.New(errordefs.KindBadRequest, "index is required")
	}
	state, err := m.e.ReportMedia(engine.MediaEvent(r.PathValue("event")), *req.Index)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, state)
}

func (m *Mux) handleLike(w http.ResponseWriter, r *http.Request) error {
	d, err := m.e.ToggleLike(r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, d)
}

func (m *Mux) handleFavorite(w http.ResponseWriter, r *http.Request) error {
	d, err := m.e.ToggleFavorite(r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, d)
}

func (m *Mux) handleDeltas(w http.ResponseWriter, r *http.Request) error {
	deltas, err := m.e.Deltas()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, deltas)
}

func (m *Mux) handleExpandComments(w http.ResponseWriter, r *http.Request) error {
	th, err := m.e.ExpandComments(r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, th)
}

func (m *Mux) handleCollapseComments(w http.ResponseWriter, r *http.Request) error {
	if err := m.e.CollapseComments(r.PathValue("id")); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handlePostComment(w http.ResponseWriter, r *http.Request) error {
	var req TextRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := m.e.PostComment(r.PathValue("id"), req.Text)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, d)
}

func (m *Mux) handlePostReply(w http.ResponseWriter, r *http.Request) error {
	var req TextRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := m.e.PostReply(r.PathValue("id"), r.PathValue("commentId"), req.Text)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, d)
}

func (m *Mux) handleLikeComment(w http.ResponseWriter, r *http.Request) error {
	d, err := m.e.LikeComment(r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, d)
}

func (m *Mux) handleReport(w http.ResponseWriter, r *http.Request) error {
	var req ReportRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := m.e.Report(r.PathValue("id"), req.Reason)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusAccepted, d)
}

func (m *Mux) handleSearchInput(w http.ResponseWriter, r *http.Request) error {
	var req SearchInputRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	st, err := m.e.SearchInput(req.Raw)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, st)
}

func (m *Mux) handleSearchSelect(w http.ResponseWriter, r *http.Request) error {
	var req model.Suggestion
	if err := decode(r, &req); err != nil {
		return err
	}
	st, err := m.e.SearchSelect(req)
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, st)
}

func (m *Mux) handleSearch(w http.ResponseWriter, r *http.Request) error {
	st, err := m.e.Search()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, st)
}

func (m *Mux) handleNotifications(w http.ResponseWriter, r *http.Request) error {
	st, err := m.e.Notifications()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, st)
}

func (m *Mux) handleMarkRead(w http.ResponseWriter, r *http.Request) error {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return errordefs.New(errordefs.KindBadRequest, "notification id is required")
	}
	if err := m.e.MarkRead(id); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handleMarkAllRead(w http.ResponseWriter, r *http.Request) error {
	if err := m.e.MarkAllRead(); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handleDeleteNotification(w http.ResponseWriter, r *http.Request) error {
	if err := m.e.DeleteNotification(r.PathValue("id")); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handlePreferences(w http.ResponseWriter, r *http.Request) error {
	var req model.Preferences
	if err := decode(r, &req); err != nil {
		return err
	}
	if req == nil {
		return errordefs.New(errordefs.KindBadRequest, "preferences must be an object")
	}
	if err := m.e.UpdatePreferences(req); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handleVisibility(w http.ResponseWriter, r *http.Request) error {
	var req VisibilityRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := m.e.Visibility(req.Visible); err != nil {
		return err
	}
	return accepted(w)
}

func (m *Mux) handleNotices(w http.ResponseWriter, r *http.Request) error {
	notices, err := m.e.Notices()
	if err != nil {
		return err
	}
	return writeSuccess(w, http.StatusOK, notices)
}
