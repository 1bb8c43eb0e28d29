package grpcserver

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/plant-keeper/internal/identity"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "10.0.0.7:5050" }

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f fakeStream) Context() context.Context { return f.ctx }

var checkInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestLoggingUnary(t *testing.T) {
	t.Parallel()

	user := uuid.Must(uuid.NewV4())
	errDown := errors.New("store down")
	cases := []struct {
		name     string
		ctx      context.Context
		handler  grpc.UnaryHandler
		wantErr  error
		wantCode string
		wantUser bool
	}{
		{
			name:     "ok",
			ctx:      peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}}),
			handler:  func(context.Context, any) (any, error) { return "SERVING", nil },
			wantCode: "OK",
		},
		{
			name:     "plain error passes through",
			ctx:      context.Background(),
			handler:  func(context.Context, any) (any, error) { return nil, errDown },
			wantErr:  errDown,
			wantCode: "Unknown",
		},
		{
			name:     "status error with caller",
			ctx:      identity.WithUserID(context.Background(), user),
			handler:  func(context.Context, any) (any, error) { return nil, status.Error(codes.NotFound, "no such service") },
			wantCode: "NotFound",
			wantUser: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			_, err := LoggingUnary(zap.New(core))(tc.ctx, "req", checkInfo, tc.handler)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}

			entries := logs.FilterMessage("grpc").All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			require.Equal(t, checkInfo.FullMethod, fields["method"])
			require.Equal(t, tc.wantCode, fields["code"])
			if tc.wantUser {
				require.Equal(t, user.String(), fields["user_id"])
			} else {
				require.NotContains(t, fields, "user_id")
			}
		})
	}
}

func TestRecoverUnary(t *testing.T) {
	t.Parallel()
	ic := RecoverUnary(zaptest.NewLogger(t))

	_, err := ic(context.Background(), "req", checkInfo, func(context.Context, any) (any, error) {
		panic("nil map write")
	})
	require.Equal(t, codes.Internal, status.Code(err))

	resp, err := ic(context.Background(), "req", checkInfo, func(context.Context, any) (any, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, resp)
}

func TestStreamInterceptors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	ss := fakeStream{ctx: peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})}
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}

	err := RecoverStream(log)(nil, ss, info, func(any, grpc.ServerStream) error { panic("stream boom") })
	require.Equal(t, codes.Internal, status.Code(err))
	require.Len(t, logs.FilterMessage("panic").All(), 1)

	err = LoggingStream(log)(nil, ss, info, func(any, grpc.ServerStream) error { return nil })
	require.NoError(t, err)
	got := logs.FilterMessage("grpc").All()
	require.Len(t, got, 1)
	require.Equal(t, "10.0.0.7:5050", got[0].ContextMap()["peer"])
}
