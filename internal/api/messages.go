package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type sendInput struct {
	Text    string `json:"text"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

func messageOf(m store.Message) protocol.Message {
	return protocol.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		CreatedAt:  time.UnixMilli(m.CreatedAt).UTC(),
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsersExcept(userFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u store.User, _ int) protocol.Contact {
		return protocol.Contact{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic}
	}))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	msgs, err := s.db.Conversation(me.ID, r.PathValue("peerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(msgs, func(m store.Message, _ int) protocol.Message {
		return messageOf(m)
	}))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	peerID := r.PathValue("peerId")

	var in sendInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		text = strings.TrimSpace(in.Content)
	}
	image := strings.TrimSpace(in.Image)
	if text == "" && image == "" {
		s.writeError(w, r, badRequest("Message text or image is required"))
		return
	}
	if media.IsDataURL(image) {
		if err := media.Check(image); err != nil {
			s.logger.Debug("rejected inline image", zap.Error(err))
			s.writeError(w, r, badRequest("Image must be a valid image file"))
			return
		}
	}

	if _, err := s.db.UserByID(peerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = notFound("Receiver not found")
		}
		s.writeError(w, r, err)
		return
	}

	stored := store.Message{SenderID: me.ID, ReceiverID: peerID, Text: text, Image: image}
	if err := s.db.InsertMessage(&stored); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := messageOf(stored)
	if s.hub != nil {
		n := s.hub.Deliver(peerID, msg)
		s.logger.Debug("message relayed",
			zap.String("message", msg.ID),
			zap.String("receiver", peerID),
			zap.Int("connections", n),
		)
	}
	writeJSON(w, http.StatusCreated, msg)
}
