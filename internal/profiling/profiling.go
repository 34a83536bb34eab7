package profiling

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
)

// Service pushes continuous profiles to pyroscope and labels hot paths so
// samples can be split by route and job topic.
type Service struct {
	cfg      config.ProfilingConfig
	logger   *logger.Logger
	profiler *pyroscope.Profiler
}

func NewService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{cfg: cfg.Profiling, logger: logger}
}

// Module provides the profiler and starts it with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewService),
		fx.Invoke(RegisterHooks),
	)
}

func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start()
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}

func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

func (s *Service) Start() error {
	if !s.Enabled() {
		s.logger.Debug("profiling disabled")
		return nil
	}

	pc := pyroscope.Config{
		ApplicationName: s.cfg.ApplicationName,
		ServerAddress:   s.cfg.ServerAddress,
		ProfileTypes:    ProfileTypes(s.cfg.ProfileTypes, s.logger),
		SampleRate:      s.cfg.SampleRate,
		Logger:          s,
	}
	if s.cfg.BasicAuthUser != "" {
		pc.BasicAuthUser = s.cfg.BasicAuthUser
		pc.BasicAuthPassword = s.cfg.BasicAuthPass
	}

	profiler, err := pyroscope.Start(pc)
	if err != nil {
		s.logger.Errorw("failed to start profiler", "server_address", s.cfg.ServerAddress, "error", err)
		return err
	}
	s.profiler = profiler
	s.logger.Infow("profiling started",
		"application_name", s.cfg.ApplicationName,
		"server_address", s.cfg.ServerAddress,
		"sample_rate", s.cfg.SampleRate,
	)
	return nil
}

func (s *Service) Stop() error {
	if s == nil || s.profiler == nil {
		return nil
	}
	return s.profiler.Stop()
}

// Do runs fn with the given label pairs attached to its profile samples.
// It calls fn directly when profiling is off.
func (s *Service) Do(ctx context.Context, fn func(context.Context), labels ...string) {
	if !s.Enabled() || len(labels) < 2 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(labels...), fn)
}

// HandlerMiddleware labels job handling by subscribed topic and tenant
func (s *Service) HandlerMiddleware(h message.HandlerFunc) message.HandlerFunc {
	if !s.Enabled() {
		return h
	}
	return func(msg *message.Message) (out []*message.Message, err error) {
		s.Do(msg.Context(), func(context.Context) {
			out, err = h(msg)
		},
			"topic", message.SubscribeTopicFromCtx(msg.Context()),
			"tenant_id", msg.Metadata.Get(pubsub.MetadataTenantID),
		)
		return out, err
	}
}

// ProfileTypes maps configured names onto pyroscope profile types. Unknown
// names are skipped; an empty list selects CPU, memory and goroutines.
func ProfileTypes(names []string, log *logger.Logger) []pyroscope.ProfileType {
	if len(names) == 0 {
		return []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileGoroutines,
		}
	}

	known := map[string]pyroscope.ProfileType{
		"cpu":            pyroscope.ProfileCPU,
		"inuse_objects":  pyroscope.ProfileInuseObjects,
		"alloc_objects":  pyroscope.ProfileAllocObjects,
		"inuse_space":    pyroscope.ProfileInuseSpace,
		"alloc_space":    pyroscope.ProfileAllocSpace,
		"goroutines":     pyroscope.ProfileGoroutines,
		"mutex_count":    pyroscope.ProfileMutexCount,
		"mutex_duration": pyroscope.ProfileMutexDuration,
		"block_count":    pyroscope.ProfileBlockCount,
		"block_duration": pyroscope.ProfileBlockDuration,
	}

	out := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			log.Warnw("unknown profile type", "type", name)
			continue
		}
		out = append(out, pt)
	}
	return out
}

// Debugf implements pyroscope.Logger. Info output is demoted to debug.
func (s *Service) Debugf(format string, args ...interface{}) {
	s.logger.Debugf("[pyroscope] "+format, args...)
}

func (s *Service) Infof(format string, args ...interface{}) {
	s.logger.Debugf("[pyroscope] "+format, args...)
}

func (s *Service) Errorf(format string, args ...interface{}) {
	s.logger.Errorf("[pyroscope] "+format, args...)
}
