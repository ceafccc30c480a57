package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationService interface {
	// AppendMessage copies one interview message. Its row id is derived from
	// the message id, so copying the same message twice stores it once.
	AppendMessage(ctx context.Context, userID, sessionID string, m models.Message) error
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationLog, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
}

func NewConversationService(convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{convos: convos}
}

func (s *conversationService) AppendMessage(ctx context.Context, userID, sessionID string, m models.Message) error {
	const op = "ConversationService.AppendMessage"

	if userID == "" || sessionID == "" || m.ID == "" || m.Text == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user_id, session_id, message id, and text are required", nil)
	}

	role := "user"
	if m.Role == models.RoleAI {
		role = "assistant"
	}
	meta, _ := json.Marshal(map[string]any{"message_id": m.ID, "audio_url": m.AudioURL})
	at := m.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	row := &models.ConversationLog{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionID+"/"+m.ID)).String(),
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Content:   m.Text,
		Timestamp: at.UTC(),
		Metadata:  datatypes.JSON(meta),
	}
	if err := s.convos.InsertIgnore(ctx, row); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert conversation log", err)
	}
	return nil
}

func (s *conversationService) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationLog, error) {
	const op = "ConversationService.ListBySession"

	if userID == "" || sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session_id are required", nil)
	}

	rows, err := s.convos.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	return rows, nil
}
