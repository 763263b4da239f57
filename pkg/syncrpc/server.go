package syncrpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mezeipetister/demobit/pkg/commit"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/log"
	"github.com/mezeipetister/demobit/pkg/metrics"
	"github.com/mezeipetister/demobit/pkg/repository"
	"github.com/mezeipetister/demobit/pkg/watch"
)

// Server implements SyncServer against one Repository: Pull streams its
// remote log, Push runs merge_pushed_commit on each incoming commit, and
// Watch fans out every commit Push merges in, via broker.
type Server struct {
	repo   *repository.Repository
	broker *watch.Broker
	grpc   *grpc.Server
}

var _ SyncServer = (*Server)(nil)

// NewServer wraps repo. The returned Server's broker is started
// immediately; call Stop to stop it.
func NewServer(repo *repository.Repository) *Server {
	b := watch.NewBroker()
	b.Start()
	return &Server{repo: repo, broker: b, grpc: grpc.NewServer()}
}

// Serve blocks, listening on addr and serving Pull/Push/Watch RPCs until
// the listener errors or Stop is called.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("syncrpc: listen %s: %w", addr, err)
	}
	RegisterSyncServer(s.grpc, s)
	log.WithComponent("syncrpc.server").Info().Str("addr", addr).Msg("serving")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server and the Watch broker.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
	s.broker.Stop()
}

// Pull streams remote commits strictly after the id carried in req.
func (s *Server) Pull(req *wrapperspb.StringValue, stream Sync_PullServer) error {
	logger := log.WithComponent("syncrpc.server")

	after := commit.Sentinel
	if v := req.GetValue(); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		after = parsed
	}

	commits, err := s.repo.CommitLog().ListRemoteAfter(after)
	if err != nil {
		logger.Error().Err(err).Msg("pull failed")
		return err
	}
	for _, c := range commits {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := stream.Send(wrapperspb.String(string(data))); err != nil {
			return err
		}
	}
	return nil
}

// Push receives a stream of locally-authored commits and merges each one
// in turn, replying with the signed remote commit or aborting the stream
// on the first error, preserving ordering.
func (s *Server) Push(stream Sync_PushServer) error {
	logger := log.WithComponent("syncrpc.server")

	for {
		in, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var incoming commit.Commit
		if err := json.Unmarshal([]byte(in.GetValue()), &incoming); err != nil {
			return err
		}

		signed, err := s.mergePushedCommit(&incoming)
		if err != nil {
			metrics.MergeRejectionsTotal.WithLabelValues(string(errs.KindOf(err))).Inc()
			logger.Error().Err(err).Str("commit_id", incoming.ID.String()).Msg("push rejected")
			return err
		}

		data, err := json.Marshal(signed)
		if err != nil {
			return err
		}
		if err := stream.Send(wrapperspb.String(string(data))); err != nil {
			return err
		}
		s.broker.Publish(signed)
	}
}

// Watch streams every commit merged by Push for as long as the client
// keeps the stream open.
func (s *Server) Watch(_ *emptypb.Empty, stream Sync_WatchServer) error {
	sub := s.broker.Subscribe()
	defer func() { metrics.WatchSubscribers.Set(float64(s.broker.SubscriberCount())) }()
	defer s.broker.Unsubscribe(sub)
	metrics.WatchSubscribers.Set(float64(s.broker.SubscriberCount()))

	ctx := stream.Context()
	for {
		select {
		case c, ok := <-sub:
			if !ok {
				return nil
			}
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := stream.Send(wrapperspb.String(string(data))); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// mergePushedCommit implements the merge_pushed_commit operation: reject
// already-signed input, enforce the ancestor/StalePush check, remote-sign
// every contained ActionObject via a universal envelope, validate each
// through the storage hooks in Check mode, sign the commit itself, and
// append it to the remote log.
func (s *Server) mergePushedCommit(incoming *commit.Commit) (*commit.Commit, error) {
	if incoming.IsRemote() {
		return nil, errs.WrongSide
	}

	lastRemote, err := s.repo.CommitLog().LastRemoteID()
	if err != nil {
		return nil, err
	}
	if incoming.AncestorID != lastRemote {
		return nil, errs.StalePush
	}

	for _, aob := range incoming.Actions {
		if aob.IsRemote() {
			return nil, errs.WrongSide
		}
		if err := aob.RemoteSign(); err != nil {
			return nil, err
		}
	}

	for _, aob := range incoming.Actions {
		if err := s.repo.ValidateAction(aob); err != nil {
			return nil, err
		}
	}

	if err := incoming.RemoteSign(); err != nil {
		return nil, err
	}

	ctx, err := s.repo.OpenMerge(incoming)
	if err != nil {
		return nil, err
	}
	if err := ctx.Close(); err != nil {
		return nil, err
	}

	return incoming, nil
}
