package services

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-sentinel/internal/api"
	sentinelv1 "github.com/miradorstack/mirador-sentinel/internal/grpc/sentinelv1"
	"github.com/miradorstack/mirador-sentinel/internal/models"
	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

// FeedbackEngine is the slice of the alert state machine the UI talks to.
type FeedbackEngine interface {
	TrySubmit(label models.Label) (bool, error)
	Decision() models.AlertDecision
}

// StateSource exposes the latest published state.
type StateSource interface {
	State() models.State
}

// FeedbackService implements the gRPC Feedback service.
type FeedbackService struct {
	sentinelv1.UnimplementedFeedbackServer

	logger *slog.Logger
	engine FeedbackEngine
	board  StateSource
}

// NewFeedbackService constructs the UI-facing facade.
func NewFeedbackService(logger *slog.Logger, engine FeedbackEngine, board StateSource) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackService{logger: logger, engine: engine, board: board}
}

// GetState returns the last published state. FeedbackEnabled is read live from
// the engine so a window closed between ticks is reflected immediately.
func (s *FeedbackService) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.board == nil || s.engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "state not configured")
	}

	state := s.board.State()
	live := s.engine.Decision()
	if state.Decision.EpisodeID == live.EpisodeID {
		state.Decision.FeedbackEnabled = live.FeedbackEnabled
	} else {
		state.Decision.FeedbackEnabled = false
	}

	out, err := api.ToProtoState(state)
	if err != nil {
		s.logger.Error("encode state failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode state")
	}
	return out, nil
}

// SubmitFeedback forwards a confirm (true) or reject (false) press to the engine.
// A refused submission is not an error: the reply carries accepted == false.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, req *wrapperspb.BoolValue) (*wrapperspb.BoolValue, error) {
	if s.engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "engine not configured")
	}

	label, err := api.FromProtoLabel(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	accepted, err := s.engine.TrySubmit(label)
	if err != nil {
		// The latch is already set; the row is lost but the submission stands.
		s.logger.Error("feedback ledger write failed",
			slog.String("label", string(label)),
			slog.String("op", utils.OpOf(err)),
			slog.Any("error", err))
	}
	return wrapperspb.Bool(accepted), nil
}
