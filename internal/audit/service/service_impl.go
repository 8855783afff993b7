package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	"github.com/emadn88/elmcorner/internal/audit/masking"
	"github.com/emadn88/elmcorner/internal/clock"
	obscontext "github.com/emadn88/elmcorner/internal/observability/context"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const unknownTarget = "unknown"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// AuditLog records one activity entry. The actor falls back to the request
// actor, then to system; phone numbers and secrets in metadata are masked.
func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if !auditdomain.ValidAction(action) {
		return auditdomain.ErrInvalidAction
	}

	entry := s.buildEntry(ctx, action, targetType, targetID, metadata)
	entry.ActorType, entry.ActorID = resolveActor(ctx, strings.TrimSpace(actorType), actorID)

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("target_type", entry.TargetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) buildEntry(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) *auditdomain.AuditLog {
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = unknownTarget
	}

	payload := masking.MaskSensitive(metadata)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	return &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		Action:     action,
		TargetType: targetType,
		TargetID:   trimmed(targetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  nonEmpty(obscontext.IPAddressFromContext(ctx)),
		UserAgent:  nonEmpty(obscontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	for _, action := range req.Actions {
		if !auditdomain.ValidAction(strings.TrimSpace(action)) {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidAction
		}
	}

	position, err := pagination.DecodePosition(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}

	pageSize := pagination.NormalizePageSize(req.PageSize)
	filter := auditdomain.ListFilter{
		Actions:    req.Actions,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Limit:      pageSize,
	}
	if position != nil {
		filter.BeforeID = position.ID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	var resp auditdomain.ListAuditLogResponse
	if pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *auditdomain.AuditLog) string {
		return pagination.EncodePosition(item.ID, item.CreatedAt)
	}); pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	resp.AuditLogs = make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			resp.AuditLogs = append(resp.AuditLogs, *item)
		}
	}
	return resp, nil
}

func resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	id := trimmed(actorID)
	if actorType == "" {
		ctxType, ctxID := obscontext.ActorFromContext(ctx)
		actorType = ctxType
		if id == nil {
			id = nonEmpty(ctxID)
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	return actorType, id
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	return nonEmpty(strings.TrimSpace(*value))
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
