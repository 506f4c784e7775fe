package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/phrazzld/functest/internal/ciutil"
)

// CIHandler is a slog.Handler that adds CI environment and test channel
// metadata to every record.
type CIHandler struct {
	handler  slog.Handler
	metadata []slog.Attr
}

// NewCIHandler creates a CIHandler writing JSON to out.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	handlerOpts := &slog.HandlerOptions{}
	if opts != nil {
		copied := *opts
		handlerOpts = &copied
	}

	return &CIHandler{
		handler:  slog.NewJSONHandler(out, handlerOpts),
		metadata: ciMetadata(),
	}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{handler: h.handler.WithAttrs(attrs), metadata: h.metadata}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{handler: h.handler.WithGroup(name), metadata: h.metadata}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	enhanced := record.Clone()
	enhanced.AddAttrs(h.metadata...)
	return h.handler.Handle(ctx, enhanced)
}

func ciMetadata() []slog.Attr {
	attrs := []slog.Attr{slog.Bool("ci", ciutil.IsCI())}

	switch {
	case ciutil.IsGitHubActions():
		attrs = append(attrs,
			slog.String("ci_provider", "github_actions"),
			slog.String("ci_run_id", os.Getenv("GITHUB_RUN_ID")),
		)
	case ciutil.IsGitLabCI():
		attrs = append(attrs,
			slog.String("ci_provider", "gitlab"),
			slog.String("ci_job_id", os.Getenv("CI_JOB_ID")),
		)
	}

	channel := ciutil.ChannelFromEnv()
	attrs = append(attrs,
		slog.Bool("test_channel_first", channel.FirstOnChannel),
		slog.Bool("test_channel_readable", channel.Readable),
	)

	return attrs
}
