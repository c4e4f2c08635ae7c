package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// IndexService rebuilds the similarity index when it starts and then every
// interval. It implements suture.Service.
type IndexService struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
}

//nolint:gocritic // zerolog.Logger passed by value
func NewIndexService(svc *Service, interval time.Duration, log zerolog.Logger) *IndexService {
	return &IndexService{
		svc:      svc,
		interval: interval,
		log:      log.With().Str("service", "index").Logger(),
	}
}

func (s *IndexService) Serve(ctx context.Context) error {
	s.rebuild(ctx)
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.rebuild(ctx)
		}
	}
}

func (s *IndexService) rebuild(ctx context.Context) {
	if _, err := s.svc.RebuildIndex(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("index rebuild failed, keeping previous index")
	}
}

func (s *IndexService) String() string {
	return "index-service"
}
