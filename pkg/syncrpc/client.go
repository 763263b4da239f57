package syncrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mezeipetister/demobit/pkg/commit"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/log"
	"github.com/mezeipetister/demobit/pkg/metrics"
	"github.com/mezeipetister/demobit/pkg/repository"
)

// Client drives the RemoteClient side of the sync protocol against one
// server address, on top of one Repository. Authorization is author
// identity only (the replica's uid, carried in every commit/action) so
// the connection uses plaintext transport credentials rather than the
// teacher's mTLS certificate dance.
type Client struct {
	conn *grpc.ClientConn
	rpc  SyncClient
	repo *repository.Repository
}

// NewClient dials addr and binds the connection to repo.
func NewClient(addr string, repo *repository.Repository) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("syncrpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, rpc: NewSyncClient(conn), repo: repo}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Pull streams remote commits strictly after the repository's current
// last-remote-id, verifying each one's signature and ancestor linkage
// before merging it in.
func (c *Client) Pull(ctx context.Context) error {
	logger := log.WithComponent("syncrpc.client")
	timer := metrics.NewTimer()

	err := c.pull(ctx)
	timer.ObserveDuration(metrics.PullDuration)
	if err != nil {
		metrics.PullTotal.WithLabelValues("rejected").Inc()
		logger.Error().Err(err).Msg("pull failed")
		return err
	}
	metrics.PullTotal.WithLabelValues("ok").Inc()
	return nil
}

func (c *Client) pull(ctx context.Context) error {
	lastRemote, err := c.repo.CommitLog().LastRemoteID()
	if err != nil {
		return err
	}
	req := wrapperspb.String("")
	if lastRemote != commit.Sentinel {
		req = wrapperspb.String(lastRemote.String())
	}

	stream, err := c.rpc.Pull(ctx, req)
	if err != nil {
		return fmt.Errorf("syncrpc: pull: %w", err)
	}

	for {
		in, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var pulled commit.Commit
		if err := json.Unmarshal([]byte(in.GetValue()), &pulled); err != nil {
			return err
		}

		if err := c.mergeRemoteCommit(&pulled); err != nil {
			return err
		}
	}
}

func (c *Client) mergeRemoteCommit(pulled *commit.Commit) error {
	valid, err := pulled.HasValidRemoteSignature()
	if err != nil {
		return err
	}
	if !valid {
		return errs.SignatureMismatch
	}

	localLast, err := c.repo.CommitLog().LastRemoteID()
	if err != nil {
		return err
	}
	if pulled.AncestorID != localLast {
		return errs.RemoteDivergence
	}

	ctx, err := c.repo.OpenMerge(pulled)
	if err != nil {
		return err
	}
	return ctx.Close()
}

// Push sends every local commit, in order, to the server and merges back
// the signed remote version. It halts at the first error (including
// StalePush), leaving the local log exactly where it stopped.
func (c *Client) Push(ctx context.Context) error {
	logger := log.WithComponent("syncrpc.client")
	timer := metrics.NewTimer()

	err := c.push(ctx)
	timer.ObserveDuration(metrics.PushDuration)
	if err != nil {
		outcome := "rejected"
		if errorsIsStalePush(err) {
			outcome = "stale_push"
		}
		metrics.PushTotal.WithLabelValues(outcome).Inc()
		logger.Error().Err(err).Msg("push failed")
		return err
	}
	metrics.PushTotal.WithLabelValues("ok").Inc()
	return nil
}

func (c *Client) push(ctx context.Context) error {
	locals, err := c.repo.CommitLog().ListLocal()
	if err != nil {
		return err
	}
	if len(locals) == 0 {
		return nil
	}

	// Rechain the pending local commits onto the current remote tail
	// before sending: a commit built before an intervening pull (e.g.
	// after a prior StalePush) still carries the ancestor it was stamped
	// with at the time, which the server would now reject again.
	remoteTail, err := c.repo.CommitLog().LastRemoteID()
	if err != nil {
		return err
	}
	if err := c.repo.CommitLog().RebaseLocal(remoteTail); err != nil {
		return err
	}
	locals, err = c.repo.CommitLog().ListLocal()
	if err != nil {
		return err
	}

	stream, err := c.rpc.Push(ctx)
	if err != nil {
		return fmt.Errorf("syncrpc: push: %w", err)
	}

	for _, local := range locals {
		data, err := json.Marshal(local)
		if err != nil {
			return err
		}
		if err := stream.Send(wrapperspb.String(string(data))); err != nil {
			return err
		}

		reply, err := stream.Recv()
		if err != nil {
			return err
		}

		var signed commit.Commit
		if err := json.Unmarshal([]byte(reply.GetValue()), &signed); err != nil {
			return err
		}

		if err := c.repo.CommitLog().DropFirstLocal(); err != nil {
			return err
		}
		if err := c.mergeRemoteCommit(&signed); err != nil {
			return err
		}
	}
	return stream.CloseSend()
}

// errorsIsStalePush reports whether err's text names the stale_push error
// kind, the only signal left once an *errs.Error crosses the gRPC wire as
// a status.
func errorsIsStalePush(err error) bool {
	return err != nil && strings.Contains(err.Error(), string(errs.KindStalePush))
}

// Watch streams every newly merged commit until ctx is cancelled, calling
// onCommit for each one. Callers that want live updates without polling
// Pull use this; it does not itself merge anything locally.
func (c *Client) Watch(ctx context.Context, onCommit func(*commit.Commit) error) error {
	stream, err := c.rpc.Watch(ctx, &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("syncrpc: watch: %w", err)
	}
	for {
		in, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		var c2 commit.Commit
		if err := json.Unmarshal([]byte(in.GetValue()), &c2); err != nil {
			return err
		}
		if err := onCommit(&c2); err != nil {
			return err
		}
	}
}
