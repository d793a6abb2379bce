package server

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/arcanechess/arcane-server-go/internal/game"
	"github.com/arcanechess/arcane-server-go/internal/repository"
	"github.com/arcanechess/arcane-server-go/internal/session"
)

// LobbyServiceName is the fully qualified name of the lobby service.
const LobbyServiceName = "arcane.v1.Lobby"

const defaultResultLimit = 20

// LobbyServer answers read-only queries about the running server. Requests
// and responses are google.protobuf.Struct so clients need no generated code.
type LobbyServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentResults(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// lobbyServer implements LobbyServer on top of the managers.
type lobbyServer struct {
	games         *game.Manager
	sessions      *session.Manager
	store         repository.ResultStore
	serverVersion string
	logger        *zap.Logger
}

// NewLobbyServer creates the lobby service.
func NewLobbyServer(
	games *game.Manager,
	sessions *session.Manager,
	store repository.ResultStore,
	serverVersion string,
	logger *zap.Logger,
) LobbyServer {
	if store == nil {
		store = repository.NopStore{}
	}
	return &lobbyServer{
		games:         games,
		sessions:      sessions,
		store:         store,
		serverVersion: serverVersion,
		logger:        logger,
	}
}

// GetStats returns server-wide counters.
func (s *lobbyServer) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats := s.games.GetStats()
	return structpb.NewStruct(map[string]any{
		"total_games":    stats.TotalGames,
		"active_games":   stats.ActiveGames,
		"finished_games": stats.FinishedGames,
		"queue_size":     stats.QueueSize,
		"total_players":  stats.TotalPlayers,
		"sessions":       s.sessions.Count(),
		"goroutines":     runtime.NumGoroutine(),
		"server_version": s.serverVersion,
		"server_time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// GetGame returns the view of a match. Accepts game_id and an optional
// player_id for the perspective fields.
func (s *lobbyServer) GetGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID := stringField(req, "game_id")
	if gameID == "" {
		return nil, status.Error(codes.InvalidArgument, "game_id is required")
	}
	g, err := s.games.GetGame(gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			return nil, status.Error(codes.NotFound, "game not found")
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(g.View(stringField(req, "player_id"), false))
}

// RecentResults lists archived matches for player_id, newest first.
func (s *lobbyServer) RecentResults(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerID := stringField(req, "player_id")
	if playerID == "" {
		return nil, status.Error(codes.InvalidArgument, "player_id is required")
	}
	limit := defaultResultLimit
	if v, ok := req.GetFields()["limit"]; ok && v.GetNumberValue() > 0 {
		limit = int(v.GetNumberValue())
	}

	results, err := s.store.RecentResults(ctx, playerID, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotConfigured) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		s.logger.Error("failed to load results", zap.String("player_id", playerID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to load results")
	}

	list := make([]any, 0, len(results))
	for _, r := range results {
		list = append(list, map[string]any{
			"game_id":   r.GameID,
			"white":     r.WhitePlayerID,
			"black":     r.BlackPlayerID,
			"status":    r.Status,
			"winner":    r.Winner,
			"reason":    r.WinReason,
			"fullmoves": r.Fullmoves,
			"ended_at":  r.EndedAt.Format(time.RFC3339),
		})
	}
	return structpb.NewStruct(map[string]any{"results": list})
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func lobbyGetStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LobbyServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + LobbyServiceName + "/GetStats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LobbyServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func lobbyGetGameHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LobbyServer).GetGame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + LobbyServiceName + "/GetGame"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LobbyServer).GetGame(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func lobbyRecentResultsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LobbyServer).RecentResults(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + LobbyServiceName + "/RecentResults"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LobbyServer).RecentResults(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var lobbyServiceDesc = grpc.ServiceDesc{
	ServiceName: LobbyServiceName,
	HandlerType: (*LobbyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: lobbyGetStatsHandler},
		{MethodName: "GetGame", Handler: lobbyGetGameHandler},
		{MethodName: "RecentResults", Handler: lobbyRecentResultsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arcane/v1/lobby.proto",
}

// RegisterLobbyServer registers the lobby service and marks it serving on the
// health service.
func RegisterLobbyServer(s *grpc.Server, srv LobbyServer) *health.Server {
	s.RegisterService(&lobbyServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(LobbyServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}
