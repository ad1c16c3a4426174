package remote

import (
	"context"

	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
	"github.com/entrhq/robotdriver/pkg/snapshot"
)

// Origin tells where a snapshot came from.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// Source produces snapshots, preferring the context service when one is
// configured and falling back to the local builder on ContextFetchError.
type Source struct {
	Client     *Client
	ServiceURL string
	Builder    *snapshot.Builder
	Logger     *logging.Logger
}

// NewSource wires a Source. An empty serviceURL means local-only.
func NewSource(client *Client, serviceURL string, builder *snapshot.Builder, logger *logging.Logger) *Source {
	if logger == nil {
		logger = logging.Nop()
	}
	if builder == nil {
		builder = snapshot.NewBuilder(snapshot.WithLogger(logger))
	}
	return &Source{Client: client, ServiceURL: serviceURL, Builder: builder, Logger: logger}
}

// Snapshot returns a snapshot of p. Warnings are only produced by local builds.
func (s *Source) Snapshot(ctx context.Context, p page.Page) (snapshot.PageSnapshot, Origin, []snapshot.Warning) {
	if s.ServiceURL != "" && s.Client != nil {
		snap, err := s.Client.Fetch(ctx, s.ServiceURL, p.URL())
		if err == nil {
			s.Logger.Debugf("snapshot of %s fetched from %s (%d elements)", p.URL(), s.ServiceURL, len(snap.Elements))
			return snap, OriginRemote, nil
		}
		s.Logger.Warnf("falling back to local snapshot: %v", err)
	}

	snap, warnings := s.Builder.Build(ctx, p)
	return snap, OriginLocal, warnings
}
